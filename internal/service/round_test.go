package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var testDefaults = RoundDefaults{TimeLimit: 20 * time.Second, Points: 100}

func TestQuestionInputBuild(t *testing.T) {
	tests := []struct {
		name    string
		in      QuestionInput
		wantErr bool
		check   func(*testing.T, *Question)
	}{
		{
			name: "defaults applied",
			in:   QuestionInput{Text: "2+2?", Options: []string{"3", "4"}},
			check: func(t *testing.T, q *Question) {
				if q.Type != KindSingle || q.TimeLimit != 20 || q.Points != 100 || q.Correct != nil {
					t.Errorf("unexpected defaults: %+v", q)
				}
			},
		},
		{
			name: "kind alias and correct",
			in:   QuestionInput{Text: "2+2?", Kind: KindSingle, Options: []string{"3", "4"}, Correct: json.RawMessage(`"4"`)},
			check: func(t *testing.T, q *Question) {
				if q.Correct == nil || q.Correct.Value != "4" {
					t.Errorf("Expected correct answer 4, got %+v", q.Correct)
				}
			},
		},
		{
			name: "explicit zero time limit is untimed",
			in:   QuestionInput{Text: "q", Options: []string{"a"}, TimeLimit: intPtr(0), Points: intPtr(10)},
			check: func(t *testing.T, q *Question) {
				if q.Duration() != 0 || q.Points != 10 {
					t.Errorf("unexpected %+v", q)
				}
			},
		},
		{
			name: "multi correct",
			in:   QuestionInput{Text: "q", Type: KindMulti, Options: []string{"a", "b", "c"}, Correct: json.RawMessage(`["c","a"]`)},
			check: func(t *testing.T, q *Question) {
				if len(q.Correct.Choices) != 2 {
					t.Errorf("Expected 2 correct choices, got %v", q.Correct.Choices)
				}
			},
		},
		{
			name: "text drops options",
			in:   QuestionInput{Text: "capital of France?", Type: KindText, Options: []string{"x"}, Correct: json.RawMessage(`"Paris"`)},
			check: func(t *testing.T, q *Question) {
				if q.Options != nil {
					t.Errorf("Expected no options for text question, got %v", q.Options)
				}
			},
		},
		{name: "missing text", in: QuestionInput{Options: []string{"a"}}, wantErr: true},
		{name: "unknown type", in: QuestionInput{Text: "q", Type: "essay", Options: []string{"a"}}, wantErr: true},
		{name: "missing options", in: QuestionInput{Text: "q"}, wantErr: true},
		{name: "duplicate options", in: QuestionInput{Text: "q", Options: []string{"a", "a"}}, wantErr: true},
		{name: "negative time", in: QuestionInput{Text: "q", Options: []string{"a"}, TimeLimit: intPtr(-1)}, wantErr: true},
		{name: "negative points", in: QuestionInput{Text: "q", Options: []string{"a"}, Points: intPtr(-5)}, wantErr: true},
		{name: "correct not an option", in: QuestionInput{Text: "q", Options: []string{"a"}, Correct: json.RawMessage(`"b"`)}, wantErr: true},
		{name: "correct wrong shape", in: QuestionInput{Text: "q", Options: []string{"a"}, Correct: json.RawMessage(`["a"]`)}, wantErr: true},
		{name: "multi empty correct", in: QuestionInput{Text: "q", Type: KindMulti, Options: []string{"a"}, Correct: json.RawMessage(`[]`)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.in.Build(testDefaults)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("Expected ErrMalformedPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			tt.check(t, q)
		})
	}
}

func TestQuestionInputBuild_Nil(t *testing.T) {
	var in *QuestionInput
	if _, err := in.Build(testDefaults); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload, got %v", err)
	}
}

func TestPollInputBuild(t *testing.T) {
	p, err := (&PollInput{Options: []string{"red", "blue"}}).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.Duration() != 0 {
		t.Errorf("Expected untimed poll, got %v", p.Duration())
	}

	p, err = (&PollInput{Options: []string{"red"}, TimeLimit: intPtr(30)}).Build()
	if err != nil || p.Duration() != 30*time.Second {
		t.Errorf("Expected 30s poll, got %v, %v", p, err)
	}

	for _, in := range []*PollInput{nil, {}, {Options: []string{"a", "a"}}, {Options: []string{"a"}, TimeLimit: intPtr(-3)}} {
		if _, err := in.Build(); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Build(%+v) expected ErrMalformedPayload, got %v", in, err)
		}
	}
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		kind    QuestionKind
		raw     string
		want    Answer
		wantErr bool
	}{
		{KindSingle, `"4"`, Answer{Value: "4"}, false},
		{KindText, `" hi "`, Answer{Value: " hi "}, false},
		{KindMulti, `["a","b"]`, Answer{Choices: []string{"a", "b"}}, false},
		{KindSingle, `4`, Answer{}, true},
		{KindSingle, `["4"]`, Answer{}, true},
		{KindMulti, `"a"`, Answer{}, true},
		{KindMulti, `null`, Answer{}, true},
		{KindSingle, ``, Answer{}, true},
	}

	for _, tt := range tests {
		got, err := ParseAnswer(tt.kind, json.RawMessage(tt.raw))
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("ParseAnswer(%s, %s) expected ErrMalformedPayload, got %v", tt.kind, tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAnswer(%s, %s) error = %v", tt.kind, tt.raw, err)
			continue
		}
		if got.Value != tt.want.Value || len(got.Choices) != len(tt.want.Choices) {
			t.Errorf("ParseAnswer(%s, %s) = %+v, want %+v", tt.kind, tt.raw, got, tt.want)
		}
	}
}

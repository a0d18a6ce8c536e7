package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"partygame/internal/models"
)

type RoundKind string

const (
	RoundQuestion RoundKind = "question"
	RoundPoll     RoundKind = "poll"
)

type QuestionKind string

const (
	KindSingle QuestionKind = "single"
	KindMulti  QuestionKind = "multi"
	KindText   QuestionKind = "text"
)

// Round 是 Question 或 Poll
type Round interface {
	RoundID() string
	Kind() RoundKind
	// Duration 為 0 表示不限時
	Duration() time.Duration
}

// RoundDefaults 補上主持人未指定的欄位
type RoundDefaults struct {
	TimeLimit time.Duration
	Points    int
}

// Answer 是經過格式檢查的作答內容，single/text 使用 Value，multi 使用 Choices
type Answer struct {
	Value   string
	Choices []string
}

// Question 推送給參加者時不含正確答案
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionKind `json:"type"`
	Options   []string     `json:"options,omitempty"`
	TimeLimit int          `json:"time_limit"`
	Points    int          `json:"points"`
	Correct   *Answer      `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
}

func (q *Question) RoundID() string { return q.ID }
func (q *Question) Kind() RoundKind { return RoundQuestion }
func (q *Question) Duration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

func (q *Question) toModel(code string) *models.Question {
	m := &models.Question{
		SessionCode: code,
		QuestionID:  q.ID,
		Text:        q.Text,
		Kind:        string(q.Type),
		Options:     q.Options,
		TimeLimit:   q.TimeLimit,
		Points:      q.Points,
	}
	m.CreatedAt = q.CreatedAt
	if q.Correct != nil {
		if q.Type == KindMulti {
			m.Correct = q.Correct.Choices
		} else {
			m.Correct = []string{q.Correct.Value}
		}
	}
	return m
}

type Poll struct {
	ID        string    `json:"id"`
	Text      string    `json:"text,omitempty"`
	Options   []string  `json:"options"`
	TimeLimit int       `json:"time_limit"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Poll) RoundID() string { return p.ID }
func (p *Poll) Kind() RoundKind { return RoundPoll }
func (p *Poll) Duration() time.Duration {
	return time.Duration(p.TimeLimit) * time.Second
}

func (p *Poll) toModel(code string) *models.Poll {
	m := &models.Poll{
		SessionCode: code,
		PollID:      p.ID,
		Text:        p.Text,
		Options:     p.Options,
		TimeLimit:   p.TimeLimit,
	}
	m.CreatedAt = p.CreatedAt
	return m
}

// QuestionInput 是主持人送來的題目，由 Build 驗證後轉為 Question
type QuestionInput struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Type      QuestionKind    `json:"type"`
	Kind      QuestionKind    `json:"kind"`
	Options   []string        `json:"options"`
	TimeLimit *int            `json:"time_limit"`
	Points    *int            `json:"points"`
	Correct   json.RawMessage `json:"correct"`
}

func (in *QuestionInput) Build(defaults RoundDefaults) (*Question, error) {
	if in == nil {
		return nil, malformed("question is required")
	}
	q := &Question{
		ID:      strings.TrimSpace(in.ID),
		Text:    strings.TrimSpace(in.Text),
		Type:    in.Type,
		Options: in.Options,
	}
	if q.Text == "" {
		return nil, malformed("question text is required")
	}
	if q.Type == "" {
		q.Type = in.Kind
	}
	if q.Type == "" {
		q.Type = KindSingle
	}

	switch q.Type {
	case KindSingle, KindMulti:
		if err := checkOptions(q.Options); err != nil {
			return nil, err
		}
	case KindText:
		q.Options = nil
	default:
		return nil, malformed("unknown question type %q", q.Type)
	}

	switch {
	case in.TimeLimit == nil:
		q.TimeLimit = int(defaults.TimeLimit / time.Second)
	case *in.TimeLimit < 0:
		return nil, malformed("time_limit must not be negative")
	default:
		q.TimeLimit = *in.TimeLimit
	}

	switch {
	case in.Points == nil:
		q.Points = defaults.Points
	case *in.Points < 0:
		return nil, malformed("points must not be negative")
	default:
		q.Points = *in.Points
	}

	if isAbsent(in.Correct) {
		return q, nil
	}
	correct, err := ParseAnswer(q.Type, in.Correct)
	if err != nil {
		return nil, fmt.Errorf("correct: %w", err)
	}
	if q.Type == KindMulti && len(correct.Choices) == 0 {
		return nil, malformed("correct answer must list at least one option")
	}
	if q.Type == KindText && strings.TrimSpace(correct.Value) == "" {
		return nil, malformed("correct answer must not be empty")
	}
	if q.Type != KindText {
		for _, c := range correct.values() {
			if !slices.Contains(q.Options, c) {
				return nil, malformed("correct answer %q is not an option", c)
			}
		}
	}
	q.Correct = &correct
	return q, nil
}

type PollInput struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	TimeLimit *int     `json:"time_limit"`
}

// Build 未指定時間的投票不限時
func (in *PollInput) Build() (*Poll, error) {
	if in == nil {
		return nil, malformed("poll is required")
	}
	p := &Poll{
		ID:      strings.TrimSpace(in.ID),
		Text:    strings.TrimSpace(in.Text),
		Options: in.Options,
	}
	if err := checkOptions(p.Options); err != nil {
		return nil, err
	}
	if in.TimeLimit != nil {
		if *in.TimeLimit < 0 {
			return nil, malformed("time_limit must not be negative")
		}
		p.TimeLimit = *in.TimeLimit
	}
	return p, nil
}

// ParseAnswer 依題型檢查作答格式: single/text 為字串，multi 為字串陣列
func ParseAnswer(kind QuestionKind, raw json.RawMessage) (Answer, error) {
	if isAbsent(raw) {
		return Answer{}, malformed("answer is required")
	}
	switch kind {
	case KindSingle, KindText:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return Answer{}, malformed("%s answer must be a string", kind)
		}
		return Answer{Value: v}, nil
	case KindMulti:
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return Answer{}, malformed("multi answer must be a list of strings")
		}
		return Answer{Choices: v}, nil
	default:
		return Answer{}, malformed("unknown question type %q", kind)
	}
}

func (a Answer) values() []string {
	if a.Choices != nil {
		return a.Choices
	}
	return []string{a.Value}
}

func checkOptions(options []string) error {
	if len(options) == 0 {
		return malformed("options are required")
	}
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		if strings.TrimSpace(o) == "" {
			return malformed("options must not be empty")
		}
		if _, dup := seen[o]; dup {
			return malformed("duplicate option %q", o)
		}
		seen[o] = struct{}{}
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

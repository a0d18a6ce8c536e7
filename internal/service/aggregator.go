package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
)

// response 保留作答者的指標，玩家中途離線時仍能在回合結束時計分
type response struct {
	participant *Participant
	answer      Answer
	choice      string
}

// aggregator 收集單一回合的作答，每位玩家只保留最後一次
type aggregator struct {
	responses map[string]*response
	order     []string
}

func newAggregator() *aggregator {
	return &aggregator{responses: make(map[string]*response)}
}

func (a *aggregator) record(r *response) {
	id := r.participant.ID
	if _, seen := a.responses[id]; !seen {
		a.order = append(a.order, id)
	}
	a.responses[id] = r
}

// each 依第一次作答的順序走訪
func (a *aggregator) each(fn func(*response)) {
	for _, id := range a.order {
		fn(a.responses[id])
	}
}

func (a *aggregator) len() int {
	return len(a.responses)
}

// tally 計算投票結果，總票數等於投過票的玩家數
func (a *aggregator) tally() map[string]int {
	counts := make(map[string]int)
	for _, r := range a.responses {
		counts[r.choice]++
	}
	return counts
}

// Submit 記錄玩家對目前題目的作答，結果要等回合結束才公布
func (r *Registry) Submit(ctx context.Context, code, participantID, roundID string, raw json.RawMessage) error {
	s, err := r.acquire(ctx, code, false)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return ErrNotInSession
	}
	rc := &s.rounds
	q, isQuestion := rc.current.(*Question)
	if rc.state != RoundActive || !isQuestion {
		return ErrRoundNotActive
	}
	if roundID != q.ID {
		return ErrStaleRound
	}
	answer, err := ParseAnswer(q.Type, raw)
	if err != nil {
		return err
	}

	rc.responses.record(&response{participant: p, answer: answer})
	s.touch()
	s.emitTo(participantID, EventAnswerAck, AnswerAckPayload{QuestionID: q.ID})

	r.logger.Debug("answer recorded",
		slog.String("session", s.code), slog.String("conn", participantID), slog.String("round", q.ID))
	return nil
}

// Vote 記錄投票並立即廣播即時票數
func (r *Registry) Vote(ctx context.Context, code, participantID, pollID, choice string) error {
	s, err := r.acquire(ctx, code, false)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return ErrNotInSession
	}
	rc := &s.rounds
	poll, isPoll := rc.current.(*Poll)
	if rc.state != RoundActive || !isPoll {
		return ErrPollNotActive
	}
	if pollID != poll.ID {
		return ErrStaleRound
	}
	if !slices.Contains(poll.Options, choice) {
		return malformed("choice %q is not an option", choice)
	}

	rc.responses.record(&response{participant: p, choice: choice})
	s.touch()
	s.emitTo(participantID, EventAnswerAck, AnswerAckPayload{PollID: poll.ID})
	s.emit(EventPollResults, PollResultsPayload{PollID: poll.ID, Counts: rc.responses.tally()})
	return nil
}

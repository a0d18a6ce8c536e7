package service

import (
	"context"
	"log/slog"
	"time"

	"partygame/internal/models"
	"partygame/internal/repository"
)

type RoundState int

const (
	RoundIdle RoundState = iota
	RoundActive
	RoundClosing
)

func (s RoundState) String() string {
	switch s {
	case RoundActive:
		return "active"
	case RoundClosing:
		return "closing"
	default:
		return "idle"
	}
}

// Timer 是 time.AfterFunc 回傳值中用到的部分
type Timer interface {
	Stop() bool
}

// roundController 是每個場次的回合狀態機，所有方法都需持有 Session.mu
type roundController struct {
	state     RoundState
	current   Round
	responses *aggregator
	timer     Timer
	endsAt    time.Time
	usedIDs   map[string]struct{}
}

func newRoundController() roundController {
	return roundController{usedIDs: make(map[string]struct{})}
}

func (rc *roundController) stopTimer() {
	if rc.timer != nil {
		rc.timer.Stop()
		rc.timer = nil
	}
}

func (rc *roundController) ready() error {
	if rc.state != RoundIdle {
		return ErrRoundAlreadyActive
	}
	return nil
}

// claimRoundID 未指定時產生新的識別碼，已使用過的識別碼會被拒絕
func (s *Session) claimRoundID(id string) (string, error) {
	used := s.rounds.usedIDs
	if id == "" {
		for {
			id = s.reg.newRoundID()
			if _, taken := used[id]; !taken {
				break
			}
		}
	} else if _, taken := used[id]; taken {
		return "", malformed("round id %q was already used in this session", id)
	}
	used[id] = struct{}{}
	return id, nil
}

func (s *Session) startQuestion(q *Question) error {
	if err := s.rounds.ready(); err != nil {
		return err
	}
	id, err := s.claimRoundID(q.ID)
	if err != nil {
		return err
	}
	q.ID = id
	q.CreatedAt = s.reg.now()

	doc := q.toModel(s.code)
	s.persist("push_question", func(ctx context.Context, st repository.Store) error {
		return st.PushQuestion(ctx, doc.SessionCode, doc)
	})
	s.startRound(q, EventQuestionPush)
	return nil
}

func (s *Session) startPoll(p *Poll) error {
	if err := s.rounds.ready(); err != nil {
		return err
	}
	id, err := s.claimRoundID(p.ID)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = s.reg.now()

	doc := p.toModel(s.code)
	s.persist("push_poll", func(ctx context.Context, st repository.Store) error {
		return st.PushPoll(ctx, doc.SessionCode, doc)
	})
	s.startRound(p, EventPollPush)
	return nil
}

func (s *Session) startRound(r Round, pushEvent string) {
	rc := &s.rounds
	rc.stopTimer()
	rc.state = RoundActive
	rc.current = r
	rc.responses = newAggregator()
	rc.endsAt = time.Time{}

	s.emit(pushEvent, r)
	s.emit(EventQuestionTimer, TimerPayload{RoundID: r.RoundID(), Time: int(r.Duration() / time.Second)})

	if d := r.Duration(); d > 0 {
		rc.endsAt = s.reg.now().Add(d)
		id := r.RoundID()
		rc.timer = s.reg.afterFunc(d, func() { s.expire(id) })
	}
	s.touch()

	s.reg.logger.Info("round started",
		slog.String("session", s.code),
		slog.String("kind", string(r.Kind())),
		slog.String("round", r.RoundID()),
		slog.Duration("limit", r.Duration()))
}

// expire 由計時器觸發，場次已被清除時不做任何事
func (s *Session) expire(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evicted {
		return
	}
	s.completeRound(roundID)
}

// completeRound 每個回合最多只會結算一次，重複呼叫回傳 false
func (s *Session) completeRound(roundID string) bool {
	rc := &s.rounds
	if rc.state != RoundActive || rc.current == nil || rc.current.RoundID() != roundID {
		return false
	}
	rc.state = RoundClosing
	rc.stopTimer()

	switch r := rc.current.(type) {
	case *Question:
		s.closeQuestion(r, rc.responses)
	case *Poll:
		s.closePoll(r, rc.responses)
	}

	rc.current = nil
	rc.responses = nil
	rc.endsAt = time.Time{}
	rc.state = RoundIdle
	s.touch()

	s.reg.logger.Info("round closed", slog.String("session", s.code), slog.String("round", roundID))
	return true
}

func (s *Session) closeQuestion(q *Question, agg *aggregator) {
	results := make([]RoundResult, 0, agg.len())
	agg.each(func(resp *response) {
		p := resp.participant
		awarded := Award(q, resp.answer)
		p.Score += awarded
		results = append(results, RoundResult{ID: p.ID, Name: p.Name, Score: p.Score, Awarded: awarded})

		id, score := p.ID, p.Score
		s.persist("set_participant_score", func(ctx context.Context, st repository.Store) error {
			return st.SetParticipantScore(ctx, s.code, id, score)
		})
	})

	s.emit(EventQuestionResults, QuestionResultsPayload{QuestionID: q.ID, Results: results})

	board := Leaderboard(s.joinOrder)
	s.emit(EventLeaderboardUpdate, board)
	s.recordLeaderboard(board)
}

func (s *Session) closePoll(p *Poll, agg *aggregator) {
	counts := agg.tally()
	s.emit(EventPollResults, PollResultsPayload{PollID: p.ID, Counts: counts, Final: true})

	s.persist("close_poll", func(ctx context.Context, st repository.Store) error {
		return st.ClosePoll(ctx, s.code, p.ID, counts)
	})
}

func (s *Session) recordLeaderboard(board []models.LeaderboardEntry) {
	cache := s.reg.board
	if cache == nil || len(board) == 0 {
		return
	}
	code := s.code
	s.reg.mirror.Enqueue(code, "record_leaderboard", func(ctx context.Context) error {
		return cache.Record(ctx, code, board)
	})
}

// sendActiveRound 讓中途加入的連線收到進行中的回合與剩餘時間
func (s *Session) sendActiveRound(connID string) {
	rc := &s.rounds
	if rc.state != RoundActive || rc.current == nil {
		return
	}
	remaining := 0
	if !rc.endsAt.IsZero() {
		if left := rc.endsAt.Sub(s.reg.now()); left > 0 {
			remaining = int((left + time.Second - 1) / time.Second)
		}
	}

	switch r := rc.current.(type) {
	case *Question:
		s.emitTo(connID, EventQuestionPush, r)
	case *Poll:
		s.emitTo(connID, EventPollPush, r)
		s.emitTo(connID, EventPollResults, PollResultsPayload{PollID: r.ID, Counts: rc.responses.tally()})
	}
	s.emitTo(connID, EventQuestionTimer, TimerPayload{RoundID: rc.current.RoundID(), Time: remaining})
}

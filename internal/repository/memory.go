package repository

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"partygame/internal/models"
)

// MemoryStore 是不落地的 Store 實作，供開發與測試使用
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
}

type memorySession struct {
	session      models.Session
	participants []*models.Participant
	questions    []models.Question
	polls        []*models.Poll
	qna          []*models.QnaItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.Code]; exists {
		return ErrDuplicate
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	s.sessions[session.Code] = &memorySession{session: *session}
	return nil
}

func (s *MemoryStore) FindSession(_ context.Context, code string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}

	out := ms.session
	out.Questions = slices.Clone(ms.questions)
	for _, p := range ms.polls {
		poll := *p
		poll.Votes = maps.Clone(p.Votes)
		out.Polls = append(out.Polls, poll)
	}
	for _, p := range ms.participants {
		if !p.DeletedAt.Valid {
			out.Participants = append(out.Participants, *p)
		}
	}
	for _, item := range ms.qna {
		out.QnaItems = append(out.QnaItems, *item)
	}
	return &out, nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, code string, participant *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	p := *participant
	p.SessionCode = code
	ms.participants = append(ms.participants, &p)
	return nil
}

func (s *MemoryStore) RemoveParticipant(_ context.Context, code, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findParticipant(code, participantID, false)
	if p == nil {
		return ErrNotFound
	}
	p.DeletedAt.Time = time.Now()
	p.DeletedAt.Valid = true
	return nil
}

func (s *MemoryStore) SetParticipantScore(_ context.Context, code, participantID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findParticipant(code, participantID, true)
	if p == nil {
		return ErrNotFound
	}
	p.Score = score
	return nil
}

func (s *MemoryStore) ListParticipants(_ context.Context, code string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return nil, nil
	}
	out := make([]models.Participant, 0, len(ms.participants))
	for _, p := range ms.participants {
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) PushQuestion(_ context.Context, code string, question *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	q := *question
	q.SessionCode = code
	ms.questions = append(ms.questions, q)
	return nil
}

func (s *MemoryStore) PushPoll(_ context.Context, code string, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	p := *poll
	p.SessionCode = code
	ms.polls = append(ms.polls, &p)
	return nil
}

func (s *MemoryStore) ClosePoll(_ context.Context, code, pollID string, votes map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	for _, p := range ms.polls {
		if p.PollID == pollID {
			now := time.Now()
			p.Votes = maps.Clone(votes)
			p.ClosedAt = &now
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) PushQnaItem(_ context.Context, code string, item *models.QnaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	it := *item
	it.SessionCode = code
	ms.qna = append(ms.qna, &it)
	return nil
}

func (s *MemoryStore) IncrementQnaUpvote(_ context.Context, code, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	for _, item := range ms.qna {
		if item.ItemID == itemID {
			item.Upvotes++
			return nil
		}
	}
	return ErrNotFound
}

// findParticipant 需在持有 s.mu 時呼叫
func (s *MemoryStore) findParticipant(code, participantID string, includeDeleted bool) *models.Participant {
	ms, ok := s.sessions[code]
	if !ok {
		return nil
	}
	for _, p := range ms.participants {
		if p.ParticipantID != participantID {
			continue
		}
		if p.DeletedAt.Valid && !includeDeleted {
			continue
		}
		return p
	}
	return nil
}

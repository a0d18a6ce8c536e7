package service

import (
	"context"
	"sync"
	"time"

	"partygame/internal/models"
	"partygame/internal/repository"
)

// Participant 以連線識別碼作為身分，重新連線會得到新的身分與 0 分
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joined_at"`
}

// ParticipantInfo 是 participants:update 中的一筆資料
type ParticipantInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Session 的所有可變狀態都由 mu 保護
type Session struct {
	mu  sync.Mutex
	reg *Registry

	code       string
	hostName   string
	hostConn   string
	createdAt  time.Time
	lastActive time.Time

	participants map[string]*Participant
	joinOrder    []*Participant

	rounds roundController
	qna    []*QnaItem

	// evicted 後任何延遲觸發的計時器都不再生效
	evicted bool
}

func newSession(reg *Registry, code, hostName string, now time.Time) *Session {
	return &Session{
		reg:          reg,
		code:         code,
		hostName:     hostName,
		createdAt:    now,
		lastActive:   now,
		participants: make(map[string]*Participant),
		rounds:       newRoundController(),
	}
}

// restoreSession 從持久化紀錄重建場次，舊連線的玩家不會恢復
func restoreSession(reg *Registry, doc *models.Session, now time.Time) *Session {
	s := newSession(reg, doc.Code, doc.HostName, now)
	if !doc.CreatedAt.IsZero() {
		s.createdAt = doc.CreatedAt
	}
	for _, q := range doc.Questions {
		s.rounds.usedIDs[q.QuestionID] = struct{}{}
	}
	for _, p := range doc.Polls {
		s.rounds.usedIDs[p.PollID] = struct{}{}
	}
	for _, item := range doc.QnaItems {
		s.qna = append(s.qna, &QnaItem{
			ID:      item.ItemID,
			Text:    item.Text,
			Author:  item.Author,
			Upvotes: item.Upvotes,
		})
	}
	for _, p := range doc.Participants {
		id := p.ParticipantID
		s.persist("remove_participant", func(ctx context.Context, st repository.Store) error {
			return st.RemoveParticipant(ctx, doc.Code, id)
		})
	}
	return s
}

func (s *Session) Code() string {
	return s.code
}

func (s *Session) touch() {
	s.lastActive = s.reg.now()
}

func (s *Session) addParticipant(p *Participant) {
	s.participants[p.ID] = p
	s.joinOrder = append(s.joinOrder, p)
}

func (s *Session) removeParticipant(id string) bool {
	if _, ok := s.participants[id]; !ok {
		return false
	}
	delete(s.participants, id)
	for i, p := range s.joinOrder {
		if p.ID == id {
			s.joinOrder = append(s.joinOrder[:i], s.joinOrder[i+1:]...)
			break
		}
	}
	return true
}

func (s *Session) participantInfos() []ParticipantInfo {
	out := make([]ParticipantInfo, 0, len(s.joinOrder))
	for _, p := range s.joinOrder {
		out = append(out, ParticipantInfo{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

func (s *Session) emit(event string, payload any) {
	s.reg.bus.EmitToRoom(s.code, event, payload)
}

func (s *Session) emitTo(connID, event string, payload any) {
	s.reg.bus.EmitToConnection(connID, event, payload)
}

// persist 將寫入交給 Mirror 非同步執行，同一場次的寫入保持順序
func (s *Session) persist(op string, fn func(ctx context.Context, st repository.Store) error) {
	store := s.reg.store
	s.reg.mirror.Enqueue(s.code, op, func(ctx context.Context) error {
		return fn(ctx, store)
	})
}

func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	return s.hostConn == "" && len(s.participants) == 0 && now.Sub(s.lastActive) >= ttl
}

// evict 需持有 s.mu
func (s *Session) evict() {
	s.rounds.stopTimer()
	s.evicted = true
}

package repository

import (
	"errors"

	"partygame/internal/storage"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Store 是場次資料的持久化閘道，所有實作都必須可併發使用
type Store interface {
	SessionRepository
	ParticipantRepository
	RoundRepository
	QnaRepository
}

type Repositories struct {
	SessionRepository
	ParticipantRepository
	RoundRepository
	QnaRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	base := newBaseRepository(db)
	return &Repositories{
		SessionRepository:     NewSessionRepository(base),
		ParticipantRepository: NewParticipantRepository(base),
		RoundRepository:       NewRoundRepository(base),
		QnaRepository:         NewQnaRepository(base),
	}
}

var (
	_ Store = (*Repositories)(nil)
	_ Store = (*MemoryStore)(nil)
)

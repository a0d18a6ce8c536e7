package repository

import (
	"context"

	"gorm.io/gorm"

	"partygame/internal/models"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	// FindSession 載入場次與其題目、投票、提問紀錄，不存在時回傳 ErrNotFound
	FindSession(ctx context.Context, code string) (*models.Session, error)
}

type sessionRepository struct {
	*baseRepository
}

func NewSessionRepository(base *baseRepository) SessionRepository {
	return &sessionRepository{baseRepository: base}
}

func (r *sessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	return r.create(ctx, session)
}

func (r *sessionRepository) FindSession(ctx context.Context, code string) (*models.Session, error) {
	var session models.Session
	err := r.conn(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Polls", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("QnaItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("code = ?", code).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

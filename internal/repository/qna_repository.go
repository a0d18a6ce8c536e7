package repository

import (
	"context"

	"gorm.io/gorm"

	"partygame/internal/models"
)

type QnaRepository interface {
	PushQnaItem(ctx context.Context, code string, item *models.QnaItem) error
	// IncrementQnaUpvote 以單一 UPDATE 原子地加一
	IncrementQnaUpvote(ctx context.Context, code, itemID string) error
}

type qnaRepository struct {
	*baseRepository
}

func NewQnaRepository(base *baseRepository) QnaRepository {
	return &qnaRepository{baseRepository: base}
}

func (r *qnaRepository) PushQnaItem(ctx context.Context, code string, item *models.QnaItem) error {
	item.SessionCode = code
	return r.create(ctx, item)
}

func (r *qnaRepository) IncrementQnaUpvote(ctx context.Context, code, itemID string) error {
	return mustAffect(r.conn(ctx).
		Model(&models.QnaItem{}).
		Where("session_code = ? AND item_id = ?", code, itemID).
		Update("upvotes", gorm.Expr("upvotes + ?", 1)))
}

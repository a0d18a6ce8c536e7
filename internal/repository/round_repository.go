package repository

import (
	"context"
	"time"

	"partygame/internal/models"
)

type RoundRepository interface {
	PushQuestion(ctx context.Context, code string, question *models.Question) error
	PushPoll(ctx context.Context, code string, poll *models.Poll) error
	ClosePoll(ctx context.Context, code, pollID string, votes map[string]int) error
}

type roundRepository struct {
	*baseRepository
}

func NewRoundRepository(base *baseRepository) RoundRepository {
	return &roundRepository{baseRepository: base}
}

func (r *roundRepository) PushQuestion(ctx context.Context, code string, question *models.Question) error {
	question.SessionCode = code
	return r.create(ctx, question)
}

func (r *roundRepository) PushPoll(ctx context.Context, code string, poll *models.Poll) error {
	poll.SessionCode = code
	return r.create(ctx, poll)
}

func (r *roundRepository) ClosePoll(ctx context.Context, code, pollID string, votes map[string]int) error {
	now := time.Now()
	return mustAffect(r.conn(ctx).
		Model(&models.Poll{}).
		Where("session_code = ? AND poll_id = ?", code, pollID).
		Updates(&models.Poll{Votes: votes, ClosedAt: &now}))
}

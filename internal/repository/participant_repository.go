package repository

import (
	"context"

	"partygame/internal/models"
)

type ParticipantRepository interface {
	AddParticipant(ctx context.Context, code string, participant *models.Participant) error
	RemoveParticipant(ctx context.Context, code, participantID string) error
	SetParticipantScore(ctx context.Context, code, participantID string, score int) error
	// ListParticipants 依加入順序列出所有參加過的玩家，包含已離線者
	ListParticipants(ctx context.Context, code string) ([]models.Participant, error)
}

type participantRepository struct {
	*baseRepository
}

func NewParticipantRepository(base *baseRepository) ParticipantRepository {
	return &participantRepository{baseRepository: base}
}

func (r *participantRepository) AddParticipant(ctx context.Context, code string, participant *models.Participant) error {
	participant.SessionCode = code
	return r.create(ctx, participant)
}

func (r *participantRepository) RemoveParticipant(ctx context.Context, code, participantID string) error {
	return mustAffect(r.conn(ctx).
		Where("session_code = ? AND participant_id = ?", code, participantID).
		Delete(&models.Participant{}))
}

func (r *participantRepository) SetParticipantScore(ctx context.Context, code, participantID string, score int) error {
	// 玩家離線後仍可能在回合結束時被計分，因此包含軟刪除的資料列
	return mustAffect(r.conn(ctx).Unscoped().
		Model(&models.Participant{}).
		Where("session_code = ? AND participant_id = ?", code, participantID).
		Update("score", score))
}

func (r *participantRepository) ListParticipants(ctx context.Context, code string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.conn(ctx).Unscoped().
		Where("session_code = ?", code).
		Order("joined_at ASC, id ASC").
		Find(&participants).Error
	return participants, translate(err)
}

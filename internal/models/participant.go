package models

import (
	"time"

	"gorm.io/gorm"
)

// Participant 表示場次中的一位玩家，離線時軟刪除以保留成績供匯出
type Participant struct {
	gorm.Model
	SessionCode   string    `gorm:"index:idx_participant_session,priority:1;size:16;not null" json:"-"`
	ParticipantID string    `gorm:"index:idx_participant_session,priority:2;size:64;not null" json:"id"`
	Name          string    `gorm:"size:100" json:"name"`
	Score         int       `gorm:"not null;default:0" json:"score"`
	JoinedAt      time.Time `json:"joined_at"`
}

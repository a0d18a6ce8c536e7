package models

import (
	"gorm.io/gorm"
)

// Session 表示一場遊戲在資料庫中的鏡像，以短代碼識別
type Session struct {
	gorm.Model
	Code         string        `gorm:"uniqueIndex;size:16;not null" json:"code"`
	HostName     string        `gorm:"size:100" json:"host"`
	Participants []Participant `gorm:"foreignKey:SessionCode;references:Code" json:"participants,omitempty"`
	Questions    []Question    `gorm:"foreignKey:SessionCode;references:Code" json:"questions,omitempty"`
	Polls        []Poll        `gorm:"foreignKey:SessionCode;references:Code" json:"polls,omitempty"`
	QnaItems     []QnaItem     `gorm:"foreignKey:SessionCode;references:Code" json:"qna,omitempty"`
}

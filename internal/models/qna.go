package models

import (
	"gorm.io/gorm"
)

// QnaItem 表示一則觀眾提問
type QnaItem struct {
	gorm.Model
	SessionCode string `gorm:"uniqueIndex:idx_qna_item,priority:1;size:16;not null" json:"-"`
	ItemID      string `gorm:"uniqueIndex:idx_qna_item,priority:2;size:32;not null" json:"id"`
	Text        string `gorm:"type:text" json:"text"`
	Author      string `gorm:"size:100" json:"author"`
	Upvotes     int    `gorm:"not null;default:0" json:"upvotes"`
}

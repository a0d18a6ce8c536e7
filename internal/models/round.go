package models

import (
	"time"

	"gorm.io/gorm"
)

// Question 表示一題已發布的題目
type Question struct {
	gorm.Model
	SessionCode string   `gorm:"uniqueIndex:idx_question_round,priority:1;size:16;not null"`
	QuestionID  string   `gorm:"uniqueIndex:idx_question_round,priority:2;size:32;not null"`
	Text        string   `gorm:"type:text"`
	Kind        string   `gorm:"size:10"`
	Options     []string `gorm:"serializer:json"`
	TimeLimit   int      // 秒
	Points      int
	// Correct 為空代表此題不計分
	Correct []string `gorm:"serializer:json"`
}

// Poll 表示一次投票，結束時寫入最終票數
type Poll struct {
	gorm.Model
	SessionCode string         `gorm:"uniqueIndex:idx_poll_round,priority:1;size:16;not null"`
	PollID      string         `gorm:"uniqueIndex:idx_poll_round,priority:2;size:32;not null"`
	Text        string         `gorm:"type:text"`
	Options     []string       `gorm:"serializer:json"`
	TimeLimit   int            // 秒，0 表示不限時
	Votes       map[string]int `gorm:"serializer:json"`
	ClosedAt    *time.Time
}

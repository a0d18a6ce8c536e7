package models

import (
	"encoding/json"
)

// Message 代表 WebSocket 上傳遞的統一封包，進出方向共用
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage 將 payload 編碼後包成封包
func NewMessage(event string, payload any) (*Message, error) {
	msg := &Message{Event: event}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Data = data
	return msg, nil
}

// AllModels 回傳需要自動遷移的資料表
func AllModels() []interface{} {
	return []interface{}{&Session{}, &Participant{}, &Question{}, &Poll{}, &QnaItem{}}
}

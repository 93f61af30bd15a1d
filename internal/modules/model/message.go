package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Finish reasons recorded in Message.Meta for assistant replies.
const (
	FinishStop         = "stop"
	FinishClientGone   = "client_gone"
	FinishBackendError = "backend_error"
)

// Message is one turn of a session. Rows are append-only.
type Message struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	SessionID uint `gorm:"not null;index:idx_message_session_created,priority:1" json:"-"`

	SenderType string  `gorm:"type:varchar(16);not null;check:chk_message_sender,sender_type IN ('user','assistant')" json:"sender_type"`
	Content    string  `gorm:"type:text;not null" json:"content"`
	EmotionTag *string `gorm:"type:varchar(32)" json:"emotion_tag,omitempty"`
	ModelName  *string `gorm:"type:varchar(64)" json:"model_name,omitempty"`

	Meta datatypes.JSONMap `swaggertype:"object" json:"meta,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index:idx_message_session_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "consultation_messages" }

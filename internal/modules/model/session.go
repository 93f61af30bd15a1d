package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is one counseling conversation. Handle is the identifier shown
// to clients; ID stays internal.
type Session struct {
	ID     uint      `gorm:"primaryKey" json:"-"`
	Handle uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	UserID uint      `gorm:"not null;index:idx_session_user_started,priority:1" json:"user_id"`

	SessionTitle string `gorm:"type:varchar(128);not null;default:''" json:"session_title"`
	// AutoTitle is true while the title is still the generated one.
	AutoTitle bool `gorm:"not null;default:false" json:"-"`

	StartedAt  time.Time  `gorm:"not null;index:idx_session_user_started,priority:2,sort:desc" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	MoodRating *int       `json:"mood_rating"`

	LastEmotionAnalysis  *string    `gorm:"type:text" json:"last_emotion_analysis"`
	LastEmotionUpdatedAt *time.Time `json:"last_emotion_updated_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Session) TableName() string { return "consultation_sessions" }

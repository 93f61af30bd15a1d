package model

import "time"

// Diary is the journal entry an analysis task points at. Only the fields
// this service reads or writes are mapped.
type Diary struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Content string `gorm:"type:text;not null" json:"content"`

	EmotionAnalysis *string    `gorm:"type:text" json:"emotion_analysis"`
	AnalyzedAt      *time.Time `json:"analyzed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Diary) TableName() string { return "diaries" }

func (d *Diary) Analyzed() bool {
	return d.EmotionAnalysis != nil && *d.EmotionAnalysis != ""
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Nickname string `gorm:"type:varchar(64);not null;default:''" json:"nickname"`
	Role     string `gorm:"type:varchar(16);not null;default:'user'" json:"role"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

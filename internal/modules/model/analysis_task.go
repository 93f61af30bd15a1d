package model

import (
	"fmt"
	"time"
)

const (
	TaskStatusPending    = "PENDING"
	TaskStatusProcessing = "PROCESSING"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusFailed     = "FAILED"
)

const (
	TaskTypeAuto   = "AUTO"   // diary save
	TaskTypeManual = "MANUAL" // owner-triggered
	TaskTypeAdmin  = "ADMIN"  // operator-triggered, skips the already-analyzed guard
	TaskTypeBatch  = "BATCH"  // operator bulk trigger
)

const DefaultMaxRetryCount = 3

var taskStatuses = []string{TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed}

var taskTypes = []string{TaskTypeAuto, TaskTypeManual, TaskTypeAdmin, TaskTypeBatch}

func IsValidTaskStatus(s string) bool { return contains(taskStatuses, s) }

func IsValidTaskType(s string) bool { return contains(taskTypes, s) }

func TaskStatuses() []string { return append([]string(nil), taskStatuses...) }

func TaskTypes() []string { return append([]string(nil), taskTypes...) }

func ValidateTaskType(s string) error {
	if !IsValidTaskType(s) {
		return fmt.Errorf("invalid task type: %s", s)
	}
	return nil
}

// AnalysisTask is one emotion-analysis work item over a diary entry.
// Consumers pick work by priority DESC, created_at ASC.
type AnalysisTask struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	DiaryID uint `gorm:"not null;index" json:"diary_id"`
	UserID  uint `gorm:"not null;index" json:"user_id"`

	Status   string `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_task_status_priority,priority:1;check:chk_task_status,status IN ('PENDING','PROCESSING','COMPLETED','FAILED')" json:"status"`
	TaskType string `gorm:"type:varchar(16);not null;index;check:chk_task_type,task_type IN ('AUTO','MANUAL','ADMIN','BATCH')" json:"task_type"`
	Priority int    `gorm:"not null;default:0;index:idx_task_status_priority,priority:2,sort:desc" json:"priority"`

	RetryCount    int     `gorm:"not null;default:0;check:chk_task_retry_budget,retry_count <= max_retry_count" json:"retry_count"`
	MaxRetryCount int     `gorm:"not null;default:3" json:"max_retry_count"`
	ErrorMessage  *string `gorm:"type:text" json:"error_message"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

func (AnalysisTask) TableName() string { return "analysis_tasks" }

// Retryable reports whether RetryTask would accept this task.
func (t *AnalysisTask) Retryable() bool {
	return t.Status == TaskStatusFailed && t.RetryCount < t.MaxRetryCount
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

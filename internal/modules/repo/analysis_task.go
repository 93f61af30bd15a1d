package repo

import (
	"context"
	"errors"
	"time"

	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"gorm.io/gorm"
)

// TaskFilter narrows an analysis task query. Zero values mean "any".
type TaskFilter struct {
	Status        string
	TaskType      string
	UserID        uint
	Priority      *int
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	FailedOnly    bool
	RetryableOnly bool

	Page     int
	PageSize int
}

type TaskPage struct {
	Items    []model.AnalysisTask `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

type TaskStatistics struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"by_status"`
	ByType    map[string]int64 `json:"by_type"`
	Retryable int64            `json:"retryable"`
}

type AnalysisTaskRepo interface {
	Create(ctx context.Context, t *model.AnalysisTask) error
	Get(ctx context.Context, id uint) (*model.AnalysisTask, error)
	MarkProcessing(ctx context.Context, id uint, at time.Time) error
	MarkCompleted(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string, at time.Time) error
	Retry(ctx context.Context, id uint) (*model.AnalysisTask, error)
	Page(ctx context.Context, f TaskFilter) (*TaskPage, error)
	Statistics(ctx context.Context) (*TaskStatistics, error)
}

type analysisTaskRepo struct{ db *gorm.DB }

func NewAnalysisTaskRepo(db *gorm.DB) AnalysisTaskRepo {
	return &analysisTaskRepo{db: db}
}

func (r *analysisTaskRepo) Create(ctx context.Context, t *model.AnalysisTask) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *analysisTaskRepo) Get(ctx context.Context, id uint) (*model.AnalysisTask, error) {
	var t model.AnalysisTask
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *analysisTaskRepo) MarkProcessing(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":     model.TaskStatusProcessing,
		"started_at": at,
	})
}

func (r *analysisTaskRepo) MarkCompleted(ctx context.Context, id uint, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":        model.TaskStatusCompleted,
		"completed_at":  at,
		"error_message": nil,
	})
}

// MarkFailed records the failure and spends one retry, never past the budget.
func (r *analysisTaskRepo) MarkFailed(ctx context.Context, id uint, reason string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":        model.TaskStatusFailed,
		"error_message": reason,
		"completed_at":  at,
		"retry_count":   gorm.Expr("CASE WHEN retry_count < max_retry_count THEN retry_count + 1 ELSE retry_count END"),
	})
}

// Retry moves a FAILED task with budget left back to PENDING in a single
// conditional update, so concurrent retries of one task cannot both win.
func (r *analysisTaskRepo) Retry(ctx context.Context, id uint) (*model.AnalysisTask, error) {
	res := r.db.WithContext(ctx).Model(&model.AnalysisTask{}).
		Where("id = ? AND status = ? AND retry_count < max_retry_count", id, model.TaskStatusFailed).
		Updates(map[string]any{
			"status":        model.TaskStatusPending,
			"error_message": nil,
			"started_at":    nil,
			"completed_at":  nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if t.Status != model.TaskStatusFailed {
			return nil, errs.ErrTaskNotFailed
		}
		return nil, errs.ErrMaxRetriesExhausted
	}
	return t, nil
}

func (r *analysisTaskRepo) Page(ctx context.Context, f TaskFilter) (*TaskPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}

	q := r.db.WithContext(ctx).Model(&model.AnalysisTask{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TaskType != "" {
		q = q.Where("task_type = ?", f.TaskType)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}
	if f.FailedOnly || f.RetryableOnly {
		q = q.Where("status = ?", model.TaskStatusFailed)
	}
	if f.RetryableOnly {
		q = q.Where("retry_count < max_retry_count")
	}

	q = q.Session(&gorm.Session{})
	out := &TaskPage{Page: f.Page, PageSize: f.PageSize}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	err := q.Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&out.Items).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type groupCount struct {
	Name  string
	Count int64
}

func (r *analysisTaskRepo) Statistics(ctx context.Context) (*TaskStatistics, error) {
	db := r.db.WithContext(ctx).Model(&model.AnalysisTask{})
	st := &TaskStatistics{
		ByStatus: make(map[string]int64, 4),
		ByType:   make(map[string]int64, 4),
	}
	for _, s := range model.TaskStatuses() {
		st.ByStatus[s] = 0
	}
	for _, t := range model.TaskTypes() {
		st.ByType[t] = 0
	}

	var rows []groupCount
	if err := db.Session(&gorm.Session{}).Select("status AS name, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		st.ByStatus[row.Name] = row.Count
		st.Total += row.Count
	}

	rows = rows[:0]
	if err := db.Session(&gorm.Session{}).Select("task_type AS name, COUNT(*) AS count").Group("task_type").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		st.ByType[row.Name] = row.Count
	}

	err := db.Session(&gorm.Session{}).
		Where("status = ? AND retry_count < max_retry_count", model.TaskStatusFailed).
		Count(&st.Retryable).Error
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *analysisTaskRepo) update(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.AnalysisTask{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrTaskNotFound
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"go.uber.org/zap"
)

// Caller is the already-authenticated identity a request acts as.
type Caller struct {
	UserID  uint
	IsAdmin bool
}

// Owns reports whether the caller may act on a resource owned by userID.
func (c Caller) Owns(userID uint) bool {
	return c.IsAdmin || c.UserID == userID
}

// TaskEventPublisher receives task lifecycle events for external consumers.
type TaskEventPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

const (
	TaskEventCreated = "created"
	TaskEventRetried = "retried"
)

type TaskEvent struct {
	Event      string    `json:"event"`
	TaskID     uint      `json:"task_id"`
	DiaryID    uint      `json:"diary_id"`
	UserID     uint      `json:"user_id"`
	TaskType   string    `json:"task_type"`
	Priority   int       `json:"priority"`
	RetryCount int       `json:"retry_count"`
	At         time.Time `json:"at"`
}

type CreateTaskInput struct {
	DiaryID  uint
	UserID   uint
	TaskType string
	Priority int
}

// BatchResult reports a best-effort batch: one entry in Failures per
// failed item, each naming the item.
type BatchResult struct {
	SuccessCount int      `json:"success_count"`
	FailCount    int      `json:"fail_count"`
	Failures     []string `json:"failures"`
}

func (b *BatchResult) ok() { b.SuccessCount++ }

func (b *BatchResult) fail(what string, id uint, err error) {
	b.FailCount++
	b.Failures = append(b.Failures, fmt.Sprintf("%s %d: %v", what, id, err))
}

type AnalysisTaskService interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (*model.AnalysisTask, error)
	Get(ctx context.Context, id uint) (*model.AnalysisTask, error)
	MarkProcessing(ctx context.Context, id uint) error
	MarkCompleted(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	RetryTask(ctx context.Context, id uint) (*model.AnalysisTask, error)
	BatchRetry(ctx context.Context, ids []uint) (*BatchResult, error)
	QueryPage(ctx context.Context, f repo.TaskFilter) (*repo.TaskPage, error)
	Statistics(ctx context.Context) (*repo.TaskStatistics, error)
}

type analysisTaskService struct {
	tasks      repo.AnalysisTaskRepo
	diaries    repo.DiaryRepo
	users      repo.UserRepo
	events     TaskEventPublisher
	log        *zap.Logger
	maxRetry   int
	batchLimit int
}

// NewAnalysisTaskService builds the task state machine. events may be nil.
func NewAnalysisTaskService(tasks repo.AnalysisTaskRepo, diaries repo.DiaryRepo, users repo.UserRepo, events TaskEventPublisher, log *zap.Logger, maxRetry, batchLimit int) AnalysisTaskService {
	if maxRetry <= 0 {
		maxRetry = model.DefaultMaxRetryCount
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &analysisTaskService{
		tasks:      tasks,
		diaries:    diaries,
		users:      users,
		events:     events,
		log:        log,
		maxRetry:   maxRetry,
		batchLimit: batchLimit,
	}
}

func (s *analysisTaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*model.AnalysisTask, error) {
	if err := model.ValidateTaskType(in.TaskType); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	if _, err := s.diaries.Get(ctx, in.DiaryID); err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, in.UserID); err != nil {
		return nil, err
	}

	t := &model.AnalysisTask{
		DiaryID:       in.DiaryID,
		UserID:        in.UserID,
		Status:        model.TaskStatusPending,
		TaskType:      in.TaskType,
		Priority:      in.Priority,
		RetryCount:    0,
		MaxRetryCount: s.maxRetry,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create analysis task: %w", err)
	}
	s.publish(ctx, TaskEventCreated, t)
	return t, nil
}

func (s *analysisTaskService) Get(ctx context.Context, id uint) (*model.AnalysisTask, error) {
	return s.tasks.Get(ctx, id)
}

func (s *analysisTaskService) MarkProcessing(ctx context.Context, id uint) error {
	return s.tasks.MarkProcessing(ctx, id, time.Now())
}

func (s *analysisTaskService) MarkCompleted(ctx context.Context, id uint) error {
	return s.tasks.MarkCompleted(ctx, id, time.Now())
}

func (s *analysisTaskService) MarkFailed(ctx context.Context, id uint, reason string) error {
	return s.tasks.MarkFailed(ctx, id, reason, time.Now())
}

func (s *analysisTaskService) RetryTask(ctx context.Context, id uint) (*model.AnalysisTask, error) {
	t, err := s.tasks.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Sugar().Infow("analysis task retried", "task_id", id, "retry_count", t.RetryCount)
	s.publish(ctx, TaskEventRetried, t)
	return t, nil
}

func (s *analysisTaskService) BatchRetry(ctx context.Context, ids []uint) (*BatchResult, error) {
	if err := checkBatch(len(ids), s.batchLimit); err != nil {
		return nil, err
	}
	res := &BatchResult{Failures: []string{}}
	for _, id := range ids {
		if _, err := s.RetryTask(ctx, id); err != nil {
			res.fail("task", id, err)
			continue
		}
		res.ok()
	}
	return res, nil
}

func (s *analysisTaskService) QueryPage(ctx context.Context, f repo.TaskFilter) (*repo.TaskPage, error) {
	if f.Status != "" && !model.IsValidTaskStatus(f.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", errs.ErrInvalidInput, f.Status)
	}
	if f.TaskType != "" && !model.IsValidTaskType(f.TaskType) {
		return nil, fmt.Errorf("%w: invalid task type %q", errs.ErrInvalidInput, f.TaskType)
	}
	return s.tasks.Page(ctx, f)
}

func (s *analysisTaskService) Statistics(ctx context.Context) (*repo.TaskStatistics, error) {
	return s.tasks.Statistics(ctx)
}

func checkBatch(n, limit int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty id list", errs.ErrInvalidInput)
	}
	if n > limit {
		return fmt.Errorf("%w: %d ids exceeds batch limit %d", errs.ErrInvalidInput, n, limit)
	}
	return nil
}

func (s *analysisTaskService) publish(ctx context.Context, event string, t *model.AnalysisTask) {
	if s.events == nil {
		return
	}
	err := s.events.PublishJSON(ctx, TaskEvent{
		Event:      event,
		TaskID:     t.ID,
		DiaryID:    t.DiaryID,
		UserID:     t.UserID,
		TaskType:   t.TaskType,
		Priority:   t.Priority,
		RetryCount: t.RetryCount,
		At:         time.Now(),
	})
	if err != nil {
		s.log.Sugar().Warnw("publish task event failed", "event", event, "task_id", t.ID, "err", err)
	}
}

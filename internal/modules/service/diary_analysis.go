package service

import (
	"context"
	"time"

	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"github.com/mindnote/counsel/internal/pkg/worker"
	"go.uber.org/zap"
)

const (
	PriorityBatch  = 1
	PriorityManual = 5
	PriorityAdmin  = 8
)

// DiaryAnalysisService turns analysis requests on diaries into tasks and
// runs them on the worker pool. Results land on the diary row.
type DiaryAnalysisService interface {
	AnalyzeDiary(ctx context.Context, caller Caller, diaryID uint) (*model.AnalysisTask, error)
	AdminAnalyzeDiary(ctx context.Context, diaryID uint) (*model.AnalysisTask, error)
	BatchAnalyze(ctx context.Context, diaryIDs []uint) (*BatchResult, error)
	RetryTask(ctx context.Context, taskID uint) (*model.AnalysisTask, error)
	BatchRetry(ctx context.Context, taskIDs []uint) (*BatchResult, error)
}

type diaryAnalysisService struct {
	tasks      AnalysisTaskService
	emotion    EmotionService
	diaries    repo.DiaryRepo
	pool       *worker.Pool
	log        *zap.Logger
	batchLimit int
}

func NewDiaryAnalysisService(tasks AnalysisTaskService, emotion EmotionService, diaries repo.DiaryRepo, pool *worker.Pool, log *zap.Logger, batchLimit int) DiaryAnalysisService {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &diaryAnalysisService{
		tasks:      tasks,
		emotion:    emotion,
		diaries:    diaries,
		pool:       pool,
		log:        log,
		batchLimit: batchLimit,
	}
}

func (s *diaryAnalysisService) AnalyzeDiary(ctx context.Context, caller Caller, diaryID uint) (*model.AnalysisTask, error) {
	d, err := s.diaries.Get(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(d.UserID) {
		return nil, errs.ErrUnauthorized
	}
	if d.Analyzed() {
		return nil, errs.ErrAlreadyAnalyzed
	}
	return s.trigger(ctx, d, model.TaskTypeManual, PriorityManual)
}

// AdminAnalyzeDiary re-analyzes regardless of an existing result.
func (s *diaryAnalysisService) AdminAnalyzeDiary(ctx context.Context, diaryID uint) (*model.AnalysisTask, error) {
	d, err := s.diaries.Get(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	return s.trigger(ctx, d, model.TaskTypeAdmin, PriorityAdmin)
}

func (s *diaryAnalysisService) BatchAnalyze(ctx context.Context, diaryIDs []uint) (*BatchResult, error) {
	if err := checkBatch(len(diaryIDs), s.batchLimit); err != nil {
		return nil, err
	}
	res := &BatchResult{Failures: []string{}}
	for _, id := range diaryIDs {
		d, err := s.diaries.Get(ctx, id)
		if err != nil {
			res.fail("diary", id, err)
			continue
		}
		if _, err := s.trigger(ctx, d, model.TaskTypeBatch, PriorityBatch); err != nil {
			res.fail("diary", id, err)
			continue
		}
		res.ok()
	}
	s.log.Sugar().Infow("batch analysis triggered", "requested", len(diaryIDs), "ok", res.SuccessCount, "failed", res.FailCount)
	return res, nil
}

func (s *diaryAnalysisService) RetryTask(ctx context.Context, taskID uint) (*model.AnalysisTask, error) {
	t, err := s.tasks.RetryTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	d, err := s.diaries.Get(ctx, t.DiaryID)
	if err != nil {
		// stays PENDING for an external dispatcher
		s.log.Sugar().Warnw("retried task not dispatched", "task_id", t.ID, "diary_id", t.DiaryID, "err", err)
		return t, nil
	}
	s.dispatch(t, d.Content)
	return t, nil
}

func (s *diaryAnalysisService) BatchRetry(ctx context.Context, taskIDs []uint) (*BatchResult, error) {
	if err := checkBatch(len(taskIDs), s.batchLimit); err != nil {
		return nil, err
	}
	res := &BatchResult{Failures: []string{}}
	for _, id := range taskIDs {
		if _, err := s.RetryTask(ctx, id); err != nil {
			res.fail("task", id, err)
			continue
		}
		res.ok()
	}
	return res, nil
}

func (s *diaryAnalysisService) trigger(ctx context.Context, d *model.Diary, taskType string, priority int) (*model.AnalysisTask, error) {
	t, err := s.tasks.CreateTask(ctx, CreateTaskInput{
		DiaryID:  d.ID,
		UserID:   d.UserID,
		TaskType: taskType,
		Priority: priority,
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(t, d.Content)
	return t, nil
}

// dispatch runs the task in the background. The task row records the
// outcome; a successful result is also written onto the diary.
func (s *diaryAnalysisService) dispatch(t *model.AnalysisTask, text string) {
	taskID, diaryID := t.ID, t.DiaryID
	err := s.pool.Submit("diary-analysis", func(ctx context.Context) {
		res, err := s.emotion.AnalyzeAsync(ctx, taskID, text)
		if err != nil {
			return
		}
		raw, err := res.Marshal()
		if err != nil {
			s.log.Sugar().Errorw("encode diary analysis failed", "task_id", taskID, "err", err)
			return
		}
		if err := s.diaries.UpdateAnalysis(ctx, diaryID, raw, time.Now()); err != nil {
			s.log.Sugar().Errorw("store diary analysis failed", "task_id", taskID, "diary_id", diaryID, "err", err)
			return
		}
		s.log.Sugar().Infow("diary analyzed", "task_id", taskID, "diary_id", diaryID, "emotion", res.PrimaryEmotion, "risk_level", res.RiskLevel)
	})
	if err != nil {
		s.log.Sugar().Warnw("analysis task not dispatched", "task_id", taskID, "err", err)
	}
}

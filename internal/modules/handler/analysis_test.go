package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/modules/service"
	"github.com/mindnote/counsel/internal/pkg/errs"
)

// MockAnalysisTaskService is a mock implementation of AnalysisTaskService
type MockAnalysisTaskService struct {
	mock.Mock
}

func (m *MockAnalysisTaskService) CreateTask(ctx context.Context, in service.CreateTaskInput) (*model.AnalysisTask, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisTask), args.Error(1)
}

func (m *MockAnalysisTaskService) Get(ctx context.Context, id uint) (*model.AnalysisTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisTask), args.Error(1)
}

func (m *MockAnalysisTaskService) MarkProcessing(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAnalysisTaskService) MarkCompleted(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAnalysisTaskService) MarkFailed(ctx context.Context, id uint, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockAnalysisTaskService) RetryTask(ctx context.Context, id uint) (*model.AnalysisTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisTask), args.Error(1)
}

func (m *MockAnalysisTaskService) BatchRetry(ctx context.Context, ids []uint) (*service.BatchResult, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockAnalysisTaskService) QueryPage(ctx context.Context, f repo.TaskFilter) (*repo.TaskPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repo.TaskPage), args.Error(1)
}

func (m *MockAnalysisTaskService) Statistics(ctx context.Context) (*repo.TaskStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repo.TaskStatistics), args.Error(1)
}

// MockDiaryAnalysisService is a mock implementation of DiaryAnalysisService
type MockDiaryAnalysisService struct {
	mock.Mock
}

func (m *MockDiaryAnalysisService) AnalyzeDiary(ctx context.Context, caller service.Caller, diaryID uint) (*model.AnalysisTask, error) {
	args := m.Called(ctx, caller, diaryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisTask), args.Error(1)
}

func (m *MockDiaryAnalysisService) AdminAnalyzeDiary(ctx context.Context, diaryID uint) (*model.AnalysisTask, error) {
	args := m.Called(ctx, diaryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisTask), args.Error(1)
}

func (m *MockDiaryAnalysisService) BatchAnalyze(ctx context.Context, diaryIDs []uint) (*service.BatchResult, error) {
	args := m.Called(ctx, diaryIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockDiaryAnalysisService) RetryTask(ctx context.Context, taskID uint) (*model.AnalysisTask, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalysisTask), args.Error(1)
}

func (m *MockDiaryAnalysisService) BatchRetry(ctx context.Context, taskIDs []uint) (*service.BatchResult, error) {
	args := m.Called(ctx, taskIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func TestAnalysisHandler_AnalyzeDiary(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setup          func(*MockDiaryAnalysisService)
		expectedStatus int
	}{
		{
			name: "queued",
			path: "/diaries/7/analyze",
			setup: func(svc *MockDiaryAnalysisService) {
				svc.On("AnalyzeDiary", mock.Anything, testCaller, uint(7)).Return(&model.AnalysisTask{ID: 1, DiaryID: 7, Status: model.TaskStatusPending}, nil)
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name: "already analyzed",
			path: "/diaries/7/analyze",
			setup: func(svc *MockDiaryAnalysisService) {
				svc.On("AnalyzeDiary", mock.Anything, testCaller, uint(7)).Return(nil, errs.ErrAlreadyAnalyzed)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "someone else's diary",
			path: "/diaries/8/analyze",
			setup: func(svc *MockDiaryAnalysisService) {
				svc.On("AnalyzeDiary", mock.Anything, testCaller, uint(8)).Return(nil, errs.ErrUnauthorized)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "unknown diary",
			path: "/diaries/9/analyze",
			setup: func(svc *MockDiaryAnalysisService) {
				svc.On("AnalyzeDiary", mock.Anything, testCaller, uint(9)).Return(nil, errs.ErrDiaryNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad id",
			path:           "/diaries/abc/analyze",
			setup:          func(svc *MockDiaryAnalysisService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDiaryAnalysisService{}
			tt.setup(svc)

			h := NewAnalysisHandler(&MockAnalysisTaskService{}, svc)
			router := setupSessionRouter(&testCaller)
			router.POST("/diaries/:diary_id/analyze", h.AnalyzeDiary)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestAnalysisHandler_QueryTasks(t *testing.T) {
	two := 2

	tests := []struct {
		name           string
		query          string
		setup          func(*MockAnalysisTaskService)
		expectedStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setup: func(svc *MockAnalysisTaskService) {
				svc.On("QueryPage", mock.Anything, repo.TaskFilter{Page: 1, PageSize: 20}).Return(&repo.TaskPage{Page: 1, PageSize: 20}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "filters",
			query: "?status=FAILED&task_type=MANUAL&user_id=3&priority=2&retryable_only=true&page=2&page_size=10",
			setup: func(svc *MockAnalysisTaskService) {
				svc.On("QueryPage", mock.Anything, repo.TaskFilter{
					Status: model.TaskStatusFailed, TaskType: model.TaskTypeManual, UserID: 3, Priority: &two,
					RetryableOnly: true, Page: 2, PageSize: 10,
				}).Return(&repo.TaskPage{Page: 2, PageSize: 10}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "bad status",
			query: "?status=DONE",
			setup: func(svc *MockAnalysisTaskService) {
				svc.On("QueryPage", mock.Anything, mock.Anything).Return(nil, errs.ErrInvalidInput)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad time",
			query:          "?created_from=yesterday",
			setup:          func(svc *MockAnalysisTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := &MockAnalysisTaskService{}
			tt.setup(tasks)

			h := NewAnalysisHandler(tasks, &MockDiaryAnalysisService{})
			router := setupSessionRouter(&service.Caller{UserID: 1, IsAdmin: true})
			router.GET("/admin/analysis/tasks", h.QueryTasks)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/analysis/tasks"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tasks.AssertExpectations(t)
		})
	}
}

func TestAnalysisHandler_Retry(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"retried", nil, http.StatusOK},
		{"exhausted", errs.ErrMaxRetriesExhausted, http.StatusConflict},
		{"not failed", errs.ErrTaskNotFailed, http.StatusConflict},
		{"unknown", errs.ErrTaskNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDiaryAnalysisService{}
			if tt.err != nil {
				svc.On("RetryTask", mock.Anything, uint(5)).Return(nil, tt.err)
			} else {
				svc.On("RetryTask", mock.Anything, uint(5)).Return(&model.AnalysisTask{ID: 5, Status: model.TaskStatusPending}, nil)
			}

			h := NewAnalysisHandler(&MockAnalysisTaskService{}, svc)
			router := setupSessionRouter(&service.Caller{UserID: 1, IsAdmin: true})
			router.POST("/admin/analysis/tasks/:task_id/retry", h.RetryTask)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/analysis/tasks/5/retry", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestAnalysisHandler_Batches(t *testing.T) {
	svc := &MockDiaryAnalysisService{}
	svc.On("BatchRetry", mock.Anything, []uint{1, 2, 3}).Return(&service.BatchResult{
		SuccessCount: 2, FailCount: 1, Failures: []string{"task 2: task is not retryable: status is not FAILED"},
	}, nil).Once()
	svc.On("BatchAnalyze", mock.Anything, []uint{7}).Return(&service.BatchResult{SuccessCount: 1, Failures: []string{}}, nil).Once()
	tasks := &MockAnalysisTaskService{}
	tasks.On("Statistics", mock.Anything).Return(&repo.TaskStatistics{Total: 3}, nil).Once()

	h := NewAnalysisHandler(tasks, svc)
	router := setupSessionRouter(&service.Caller{UserID: 1, IsAdmin: true})
	router.POST("/batch_retry", h.BatchRetry)
	router.POST("/batch_analyze", h.BatchAnalyze)
	router.GET("/statistics", h.Statistics)

	req := httptest.NewRequest(http.MethodPost, "/batch_retry", jsonBody(t, BatchTaskIDsReq{TaskIDs: []uint{1, 2, 3}}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fail_count":1`)

	req = httptest.NewRequest(http.MethodPost, "/batch_retry", jsonBody(t, map[string]any{"task_ids": []uint{}}))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/batch_analyze", jsonBody(t, BatchDiaryIDsReq{DiaryIDs: []uint{7}}))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/statistics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
	tasks.AssertExpectations(t)
}

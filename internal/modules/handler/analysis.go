package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/modules/serializer"
	"github.com/mindnote/counsel/internal/modules/service"
)

type AnalysisHandler struct {
	tasks    service.AnalysisTaskService
	analysis service.DiaryAnalysisService
}

func NewAnalysisHandler(tasks service.AnalysisTaskService, analysis service.DiaryAnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		tasks:    tasks,
		analysis: analysis,
	}
}

// AnalyzeDiary godoc
//
//	@Summary		Analyze diary
//	@Description	Queue an emotion analysis of one of the caller's diaries. Rejected when the diary already has a result.
//	@Tags			analysis
//	@Produce		json
//	@Param			diary_id	path	integer	true	"Diary ID"
//	@Security		BearerAuth
//	@Success		202	{object}	serializer.Response{data=model.AnalysisTask}
//	@Failure		409	{object}	serializer.Response	"already analyzed"
//	@Router			/diaries/{diary_id}/analyze [post]
func (h *AnalysisHandler) AnalyzeDiary(c *gin.Context) {
	diaryID, ok := uintParam(c, "diary_id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	task, err := h.analysis.AnalyzeDiary(c.Request.Context(), caller, diaryID)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, serializer.Response{Data: task})
}

// AdminAnalyzeDiary godoc
//
//	@Summary		Re-analyze diary (admin)
//	@Description	Queue an analysis regardless of an existing result
//	@Tags			admin
//	@Produce		json
//	@Param			diary_id	path	integer	true	"Diary ID"
//	@Security		BearerAuth
//	@Success		202	{object}	serializer.Response{data=model.AnalysisTask}
//	@Router			/admin/analysis/diaries/{diary_id}/analyze [post]
func (h *AnalysisHandler) AdminAnalyzeDiary(c *gin.Context) {
	diaryID, ok := uintParam(c, "diary_id")
	if !ok {
		return
	}
	task, err := h.analysis.AdminAnalyzeDiary(c.Request.Context(), diaryID)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, serializer.Response{Data: task})
}

type QueryTasksReq struct {
	Status        string     `form:"status" json:"status" example:"FAILED"`
	TaskType      string     `form:"task_type" json:"task_type" example:"MANUAL"`
	UserID        uint       `form:"user_id" json:"user_id"`
	Priority      *int       `form:"priority" json:"priority"`
	CreatedFrom   *time.Time `form:"created_from" json:"created_from" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedTo     *time.Time `form:"created_to" json:"created_to" time_format:"2006-01-02T15:04:05Z07:00"`
	FailedOnly    bool       `form:"failed_only,default=false" json:"failed_only"`
	RetryableOnly bool       `form:"retryable_only,default=false" json:"retryable_only"`
	Page          int        `form:"page,default=1" json:"page" binding:"min=1"`
	PageSize      int        `form:"page_size,default=20" json:"page_size" binding:"min=1,max=100"`
}

// QueryTasks godoc
//
//	@Summary		Query analysis tasks (admin)
//	@Description	Filtered, paged task listing, newest first
//	@Tags			admin
//	@Produce		json
//	@Param			status			query	string	false	"PENDING, PROCESSING, COMPLETED or FAILED"
//	@Param			task_type		query	string	false	"AUTO, MANUAL, BATCH or ADMIN"
//	@Param			user_id			query	integer	false	"Owner user id"
//	@Param			priority		query	integer	false	"Exact priority"
//	@Param			created_from	query	string	false	"RFC3339 lower bound on creation time"
//	@Param			created_to		query	string	false	"RFC3339 upper bound on creation time"
//	@Param			failed_only		query	boolean	false	"Only FAILED tasks"
//	@Param			retryable_only	query	boolean	false	"Only FAILED tasks with retry budget left"
//	@Param			page			query	integer	false	"Page, default 1"
//	@Param			page_size		query	integer	false	"Page size, default 20. Max 100."
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=repo.TaskPage}
//	@Router			/admin/analysis/tasks [get]
func (h *AnalysisHandler) QueryTasks(c *gin.Context) {
	req := QueryTasksReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	page, err := h.tasks.QueryPage(c.Request.Context(), repo.TaskFilter{
		Status:        req.Status,
		TaskType:      req.TaskType,
		UserID:        req.UserID,
		Priority:      req.Priority,
		CreatedFrom:   req.CreatedFrom,
		CreatedTo:     req.CreatedTo,
		FailedOnly:    req.FailedOnly,
		RetryableOnly: req.RetryableOnly,
		Page:          req.Page,
		PageSize:      req.PageSize,
	})
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: page})
}

// Statistics godoc
//
//	@Summary		Task statistics (admin)
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=repo.TaskStatistics}
//	@Router			/admin/analysis/statistics [get]
func (h *AnalysisHandler) Statistics(c *gin.Context) {
	st, err := h.tasks.Statistics(c.Request.Context())
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: st})
}

// RetryTask godoc
//
//	@Summary		Retry task (admin)
//	@Description	Return a FAILED task with retry budget left to PENDING and dispatch it again
//	@Tags			admin
//	@Produce		json
//	@Param			task_id	path	integer	true	"Task ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.AnalysisTask}
//	@Failure		409	{object}	serializer.Response	"task is not retryable"
//	@Router			/admin/analysis/tasks/{task_id}/retry [post]
func (h *AnalysisHandler) RetryTask(c *gin.Context) {
	taskID, ok := uintParam(c, "task_id")
	if !ok {
		return
	}
	task, err := h.analysis.RetryTask(c.Request.Context(), taskID)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: task})
}

type BatchTaskIDsReq struct {
	TaskIDs []uint `json:"task_ids" binding:"required,min=1"`
}

// BatchRetry godoc
//
//	@Summary		Batch retry tasks (admin)
//	@Description	Retry each task independently; failures are reported per item
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.BatchTaskIDsReq	true	"BatchRetry payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.BatchResult}
//	@Router			/admin/analysis/tasks/batch_retry [post]
func (h *AnalysisHandler) BatchRetry(c *gin.Context) {
	req := BatchTaskIDsReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	res, err := h.analysis.BatchRetry(c.Request.Context(), req.TaskIDs)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

type BatchDiaryIDsReq struct {
	DiaryIDs []uint `json:"diary_ids" binding:"required,min=1"`
}

// BatchAnalyze godoc
//
//	@Summary		Batch analyze diaries (admin)
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.BatchDiaryIDsReq	true	"BatchAnalyze payload"
//	@Security		BearerAuth
//	@Success		202	{object}	serializer.Response{data=service.BatchResult}
//	@Router			/admin/analysis/batch_analyze [post]
func (h *AnalysisHandler) BatchAnalyze(c *gin.Context) {
	req := BatchDiaryIDsReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	res, err := h.analysis.BatchAnalyze(c.Request.Context(), req.DiaryIDs)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, serializer.Response{Data: res})
}

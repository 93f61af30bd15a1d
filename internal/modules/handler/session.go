package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindnote/counsel/internal/modules/serializer"
	"github.com/mindnote/counsel/internal/modules/service"
	"go.uber.org/zap"
)

type SessionHandler struct {
	svc  service.SessionService
	chat service.ChatService
	log  *zap.Logger
}

func NewSessionHandler(s service.SessionService, chat service.ChatService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		svc:  s,
		chat: chat,
		log:  log,
	}
}

type StartSessionReq struct {
	SessionTitle   string `json:"session_title" example:"Work stress"`
	InitialMessage string `json:"initial_message" example:"I can't sleep before deadlines."`
}

// StartSession godoc
//
//	@Summary		Start session
//	@Description	Start a counseling session, optionally with an opening message. The opening message is stored but not answered; stream it as the first turn.
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.StartSessionReq	true	"StartSession payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=service.StartSessionOutput}
//	@Router			/sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	req := StartSessionReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	out, err := h.svc.Start(c.Request.Context(), caller, service.StartSessionInput{
		Title:          req.SessionTitle,
		OpeningMessage: req.InitialMessage,
	})
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: out})
}

type ListSessionsReq struct {
	Page     int `form:"page,default=1" json:"page" binding:"min=1" example:"1"`
	PageSize int `form:"page_size,default=20" json:"page_size" binding:"min=1,max=100" example:"20"`
}

type ListSessionsResp struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// ListSessions godoc
//
//	@Summary		List sessions
//	@Description	List the caller's sessions, newest first
//	@Tags			session
//	@Produce		json
//	@Param			page		query	integer	false	"Page, default 1"
//	@Param			page_size	query	integer	false	"Page size, default 20. Max 100."
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=handler.ListSessionsResp}
//	@Router			/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	req := ListSessionsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), caller, req.Page, req.PageSize)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: ListSessionsResp{Items: items, Total: total, Page: req.Page, PageSize: req.PageSize}})
}

// DeleteSession godoc
//
//	@Summary		Delete session
//	@Description	Delete a session with all of its messages
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/sessions/{session_id} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), caller, c.Param("session_id")); err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{})
}

type RenameSessionReq struct {
	SessionTitle string `json:"session_title" binding:"required" example:"Sleep and deadlines"`
}

// RenameSession godoc
//
//	@Summary		Rename session
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			session_id	path	string						true	"Session ID"	format(uuid)
//	@Param			payload		body	handler.RenameSessionReq	true	"RenameSession payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Session}
//	@Router			/sessions/{session_id}/title [put]
func (h *SessionHandler) RenameSession(c *gin.Context) {
	req := RenameSessionReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	ss, err := h.svc.Rename(c.Request.Context(), caller, c.Param("session_id"), req.SessionTitle)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: ss})
}

type EndSessionReq struct {
	MoodRating *int `json:"mood_rating" binding:"omitempty,min=1,max=10" example:"7"`
}

// EndSession godoc
//
//	@Summary		End session
//	@Description	End a session and clear its conversation memory. Messages are kept.
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			session_id	path	string					true	"Session ID"	format(uuid)
//	@Param			payload		body	handler.EndSessionReq	false	"EndSession payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/sessions/{session_id}/end [post]
func (h *SessionHandler) EndSession(c *gin.Context) {
	req := EndSessionReq{}
	// the body is optional, chunked or not
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
			return
		}
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	if err := h.svc.End(c.Request.Context(), caller, c.Param("session_id"), req.MoodRating); err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{})
}

type StreamChatReq struct {
	Message string `json:"message" binding:"required" example:"I keep replaying the meeting in my head."`
}

type streamFragment struct {
	Content string `json:"content"`
}

// StreamChat godoc
//
//	@Summary		Stream a chat turn
//	@Description	Send one user message and receive the reply as Server-Sent Events. Events: "message" (data.content is a fragment), then "done" (data is the turn result) or "error".
//	@Tags			session
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			session_id	path	string					true	"Session ID"	format(uuid)
//	@Param			payload		body	handler.StreamChatReq	true	"StreamChat payload"
//	@Security		BearerAuth
//	@Success		200	{object}	service.TurnResult
//	@Failure		409	{object}	serializer.Response	"a turn is already in progress"
//	@Router			/sessions/{session_id}/stream [post]
func (h *SessionHandler) StreamChat(c *gin.Context) {
	req := StreamChatReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	started := false
	emit := func(fragment string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !started {
			started = true
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
		}
		c.SSEvent("message", streamFragment{Content: fragment})
		c.Writer.Flush()
		return ctx.Err()
	}

	res, err := h.chat.StreamTurn(ctx, caller, c.Param("session_id"), req.Message, emit)
	if err != nil {
		if !started {
			// nothing streamed yet, a plain status is still possible
			writeServiceErr(c, err)
			return
		}
		h.log.Sugar().Warnw("chat stream ended with error", "session_id", c.Param("session_id"), "err", err)
		c.SSEvent("error", serializer.BackendErr("", err))
		c.Writer.Flush()
		return
	}
	if ctx.Err() != nil {
		return
	}
	c.SSEvent("done", res)
	c.Writer.Flush()
}

type ListMessagesReq struct {
	Limit int `form:"limit,default=100" json:"limit" binding:"min=1,max=500" example:"100"`
}

// ListMessages godoc
//
//	@Summary		List messages
//	@Description	List the most recent messages of a session in chronological order
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"	format(uuid)
//	@Param			limit		query	integer	false	"Limit, default 100. Max 500."
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Message}
//	@Router			/sessions/{session_id}/messages [get]
func (h *SessionHandler) ListMessages(c *gin.Context) {
	req := ListMessagesReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	msgs, err := h.svc.Messages(c.Request.Context(), caller, c.Param("session_id"), req.Limit)
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: msgs})
}

// GetEmotion godoc
//
//	@Summary		Get emotion snapshot
//	@Description	Latest emotion analysis of the session, or the neutral default when none exists yet
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.EmotionAnalysisResult}
//	@Router			/sessions/{session_id}/emotion [get]
func (h *SessionHandler) GetEmotion(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	res, err := h.svc.EmotionSnapshot(c.Request.Context(), caller, c.Param("session_id"))
	if err != nil {
		writeServiceErr(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

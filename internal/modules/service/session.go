package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/pkg/convmem"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"github.com/mindnote/counsel/internal/pkg/worker"
	"go.uber.org/zap"
)

const (
	maxTitleRunes     = 128
	maxTranscriptRows = 2000
	autoTitleLayout   = "2006-01-02 15:04"
)

// TranscriptArchiver stores a finished session's transcript somewhere durable.
type TranscriptArchiver interface {
	ArchiveTranscript(ctx context.Context, name string, transcript any) (string, error)
}

// ConversationID is the memory key for a session.
func ConversationID(handle uuid.UUID) string {
	return "session:" + handle.String()
}

func ParseHandle(handle string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(handle))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errs.ErrInvalidHandle, handle)
	}
	return id, nil
}

type StartSessionInput struct {
	Title          string
	OpeningMessage string
}

type StartSessionOutput struct {
	Session        *model.Session `json:"session"`
	OpeningMessage *model.Message `json:"opening_message,omitempty"`
}

type Transcript struct {
	SessionID  uuid.UUID       `json:"session_id"`
	UserID     uint            `json:"user_id"`
	Title      string          `json:"session_title"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at"`
	MoodRating *int            `json:"mood_rating,omitempty"`
	Messages   []model.Message `json:"messages"`
}

type SessionService interface {
	OwnerOf(ctx context.Context, handle string) (uint, error)
	AssertOwnership(ctx context.Context, handle string, caller Caller) (*model.Session, error)

	Start(ctx context.Context, caller Caller, in StartSessionInput) (*StartSessionOutput, error)
	End(ctx context.Context, caller Caller, handle string, mood *int) error
	Delete(ctx context.Context, caller Caller, handle string) error
	Rename(ctx context.Context, caller Caller, handle string, title string) (*model.Session, error)
	EmotionSnapshot(ctx context.Context, caller Caller, handle string) (model.EmotionAnalysisResult, error)
	List(ctx context.Context, caller Caller, page, size int) ([]model.Session, int64, error)
	Messages(ctx context.Context, caller Caller, handle string, limit int) ([]model.Message, error)
}

type sessionService struct {
	r        repo.SessionRepo
	memory   *convmem.Store
	pool     *worker.Pool
	archiver TranscriptArchiver
	log      *zap.Logger
	now      func() time.Time
}

// NewSessionService builds the session registry. archiver may be nil.
func NewSessionService(r repo.SessionRepo, memory *convmem.Store, pool *worker.Pool, archiver TranscriptArchiver, log *zap.Logger) SessionService {
	return &sessionService{
		r:        r,
		memory:   memory,
		pool:     pool,
		archiver: archiver,
		log:      log,
		now:      time.Now,
	}
}

func (s *sessionService) resolve(ctx context.Context, handle string) (*model.Session, error) {
	id, err := ParseHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.r.GetByHandle(ctx, id)
}

func (s *sessionService) OwnerOf(ctx context.Context, handle string) (uint, error) {
	ss, err := s.resolve(ctx, handle)
	if err != nil {
		return 0, err
	}
	return ss.UserID, nil
}

// AssertOwnership resolves the session and checks the caller may act on it.
// Every session-scoped operation goes through here first.
func (s *sessionService) AssertOwnership(ctx context.Context, handle string, caller Caller) (*model.Session, error) {
	ss, err := s.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(ss.UserID) {
		return nil, errs.ErrUnauthorized
	}
	return ss, nil
}

func (s *sessionService) Start(ctx context.Context, caller Caller, in StartSessionInput) (*StartSessionOutput, error) {
	now := s.now()
	ss := &model.Session{
		Handle:    uuid.New(),
		UserID:    caller.UserID,
		StartedAt: now,
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		ss.SessionTitle = truncateRunes(title, maxTitleRunes)
	} else {
		ss.SessionTitle = "Consultation " + now.Format(autoTitleLayout)
		ss.AutoTitle = true
	}
	if err := s.r.Create(ctx, ss); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	out := &StartSessionOutput{Session: ss}
	if text := strings.TrimSpace(in.OpeningMessage); text != "" {
		msg := &model.Message{
			SessionID:  ss.ID,
			SenderType: model.SenderUser,
			Content:    text,
		}
		if err := s.r.CreateMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("persist opening message: %w", err)
		}
		out.OpeningMessage = msg
	}

	s.log.Sugar().Infow("session started", "session_id", ss.Handle, "user_id", ss.UserID, "opening", out.OpeningMessage != nil)
	return out, nil
}

// End clears the conversation memory and stamps the session. Rows stay.
func (s *sessionService) End(ctx context.Context, caller Caller, handle string, mood *int) error {
	if mood != nil && (*mood < 1 || *mood > 10) {
		return fmt.Errorf("%w: mood rating must be between 1 and 10", errs.ErrInvalidInput)
	}
	ss, err := s.AssertOwnership(ctx, handle, caller)
	if err != nil {
		return err
	}

	endedAt := s.now()
	if err := s.r.MarkEnded(ctx, ss.ID, endedAt, mood); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	s.memory.Clear(ConversationID(ss.Handle))

	if s.archiver != nil {
		ss.EndedAt, ss.MoodRating = &endedAt, mood
		snapshot := *ss
		if err := s.pool.Submit("archive-transcript", func(ctx context.Context) {
			s.archive(ctx, &snapshot)
		}); err != nil {
			s.log.Sugar().Warnw("transcript archive not scheduled", "session_id", ss.Handle, "err", err)
		}
	}
	return nil
}

func (s *sessionService) archive(ctx context.Context, ss *model.Session) {
	msgs, err := s.r.ListRecentMessages(ctx, ss.ID, maxTranscriptRows)
	if err != nil {
		s.log.Sugar().Warnw("load transcript failed", "session_id", ss.Handle, "err", err)
		return
	}
	key, err := s.archiver.ArchiveTranscript(ctx, ss.Handle.String(), Transcript{
		SessionID:  ss.Handle,
		UserID:     ss.UserID,
		Title:      ss.SessionTitle,
		StartedAt:  ss.StartedAt,
		EndedAt:    *ss.EndedAt,
		MoodRating: ss.MoodRating,
		Messages:   msgs,
	})
	if err != nil {
		s.log.Sugar().Warnw("archive transcript failed", "session_id", ss.Handle, "err", err)
		return
	}
	s.log.Sugar().Infow("transcript archived", "session_id", ss.Handle, "key", key, "messages", len(msgs))
}

func (s *sessionService) Delete(ctx context.Context, caller Caller, handle string) error {
	ss, err := s.AssertOwnership(ctx, handle, caller)
	if err != nil {
		return err
	}
	if err := s.r.DeleteWithMessages(ctx, ss.ID); err != nil {
		return fmt.Errorf("delete session %s: %w", ss.Handle, err)
	}
	s.memory.Clear(ConversationID(ss.Handle))
	s.log.Sugar().Infow("session deleted", "session_id", ss.Handle, "by", caller.UserID)
	return nil
}

func (s *sessionService) Rename(ctx context.Context, caller Caller, handle string, title string) (*model.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is empty", errs.ErrInvalidInput)
	}
	ss, err := s.AssertOwnership(ctx, handle, caller)
	if err != nil {
		return nil, err
	}
	title = truncateRunes(title, maxTitleRunes)
	if err := s.r.UpdateTitle(ctx, ss.ID, title, false); err != nil {
		return nil, err
	}
	ss.SessionTitle, ss.AutoTitle = title, false
	return ss, nil
}

func (s *sessionService) EmotionSnapshot(ctx context.Context, caller Caller, handle string) (model.EmotionAnalysisResult, error) {
	ss, err := s.AssertOwnership(ctx, handle, caller)
	if err != nil {
		return model.EmotionAnalysisResult{}, err
	}
	return model.ParseEmotionSnapshot(ss.LastEmotionAnalysis), nil
}

func (s *sessionService) List(ctx context.Context, caller Caller, page, size int) ([]model.Session, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.r.ListByUser(ctx, caller.UserID, (page-1)*size, size)
}

func (s *sessionService) Messages(ctx context.Context, caller Caller, handle string, limit int) ([]model.Message, error) {
	ss, err := s.AssertOwnership(ctx, handle, caller)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.r.ListRecentMessages(ctx, ss.ID, limit)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

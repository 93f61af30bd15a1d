package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mindnote/counsel/internal/infra/cache"
	"github.com/mindnote/counsel/internal/infra/llm"
	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/pkg/convmem"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"github.com/mindnote/counsel/internal/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const counselingSystemPrompt = `You are a warm, patient counseling companion inside a journaling app.
Listen first. Reflect the user's feelings back in plain language before offering anything else.
Offer at most two small, concrete coping ideas at a time and ask one gentle follow-up question.
Do not diagnose, prescribe medication, or claim to be a licensed therapist.
If the user mentions self-harm or being in danger, respond with care, encourage them to contact local emergency services or a crisis hotline right away, and keep them talking.
Keep replies concise and in the same language the user writes in.`

const autoTitleRunes = 30

// TurnLocker serializes chat turns on one session.
type TurnLocker interface {
	Acquire(ctx context.Context, key string) (cache.ReleaseFunc, error)
}

// EmitFunc forwards one fragment to the caller. An error means the caller
// is gone.
type EmitFunc func(fragment string) error

type TurnResult struct {
	UserMessageID uint   `json:"user_message_id"`
	Duplicate     bool   `json:"duplicate"`
	Reply         string `json:"reply"`
	Finish        string `json:"finish"`
}

type ChatService interface {
	// StreamTurn runs one chat turn, calling emit for each fragment as it
	// arrives. The reply and memory are stored before it returns; the
	// emotion snapshot is updated in the background.
	StreamTurn(ctx context.Context, caller Caller, handle string, text string, emit EmitFunc) (*TurnResult, error)
}

type chatService struct {
	sessions     SessionService
	r            repo.SessionRepo
	memory       *convmem.Store
	llm          llm.Client
	emotion      EmotionService
	locker       TurnLocker
	pool         *worker.Pool
	log          *zap.Logger
	rebuildLimit int
}

type ChatDeps struct {
	Sessions     SessionService
	Repo         repo.SessionRepo
	Memory       *convmem.Store
	LLM          llm.Client
	Emotion      EmotionService
	Locker       TurnLocker
	Pool         *worker.Pool
	Log          *zap.Logger
	RebuildLimit int
}

func NewChatService(d ChatDeps) ChatService {
	if d.RebuildLimit <= 0 {
		d.RebuildLimit = d.Memory.Cap()
	}
	return &chatService{
		sessions:     d.Sessions,
		r:            d.Repo,
		memory:       d.Memory,
		llm:          d.LLM,
		emotion:      d.Emotion,
		locker:       d.Locker,
		pool:         d.Pool,
		log:          d.Log,
		rebuildLimit: d.RebuildLimit,
	}
}

// turn carries everything finalization needs once the stream is over.
type turn struct {
	session model.Session
	convID  string
	userMsg model.Message
	reply   string
	finish  string
	release cache.ReleaseFunc
}

func (s *chatService) StreamTurn(ctx context.Context, caller Caller, handle string, text string, emit EmitFunc) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", errs.ErrInvalidInput)
	}

	// VALIDATING
	ss, err := s.sessions.AssertOwnership(ctx, handle, caller)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, ss.Handle.String())
	if err != nil {
		return nil, err
	}
	handedOff := false
	defer func() {
		if !handedOff {
			release()
		}
	}()

	ctx, span := tracer.Start(ctx, "chat.turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", ss.Handle.String()))

	// PERSISTING_USER_MESSAGE
	userMsg, dup, err := s.persistUserMessage(ctx, ss, text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("message.duplicate", dup))

	// BUILDING_CONTEXT
	convID := ConversationID(ss.Handle)
	s.rebuildMemory(ctx, ss, convID, userMsg.ID)
	prompt := s.buildPrompt(convID, text)

	// STREAMING
	reply, finish, streamErr := s.stream(ctx, prompt, emit)
	span.SetAttributes(
		attribute.String("chat.finish", finish),
		attribute.Int("chat.reply_len", len(reply)),
	)

	// FINALIZING
	t := turn{session: *ss, convID: convID, userMsg: *userMsg, reply: reply, finish: finish, release: release}
	handedOff = true
	s.finalize(context.WithoutCancel(ctx), t)
	if err := s.pool.Submit("chat-emotion", func(jctx context.Context) { s.snapshotEmotion(jctx, t) }); err != nil {
		s.log.Sugar().Warnw("emotion snapshot not scheduled", "session_id", ss.Handle, "err", err)
	}

	res := &TurnResult{UserMessageID: userMsg.ID, Duplicate: dup, Reply: reply, Finish: finish}
	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, "stream failed")
		return res, fmt.Errorf("%w: %v", errs.ErrBackend, streamErr)
	}
	return res, nil
}

// persistUserMessage stores the turn's user message unless it repeats the
// opening message the session was started with.
func (s *chatService) persistUserMessage(ctx context.Context, ss *model.Session, text string) (*model.Message, bool, error) {
	n, err := s.r.CountMessages(ctx, ss.ID)
	if err != nil {
		return nil, false, fmt.Errorf("count messages: %w", err)
	}
	if n == 1 {
		prior, err := s.r.ListRecentMessages(ctx, ss.ID, 1)
		if err != nil {
			return nil, false, fmt.Errorf("load opening message: %w", err)
		}
		if len(prior) == 1 && prior[0].SenderType == model.SenderUser && prior[0].Content == text {
			return &prior[0], true, nil
		}
	}

	msg := &model.Message{
		SessionID:  ss.ID,
		SenderType: model.SenderUser,
		Content:    text,
	}
	if err := s.r.CreateMessage(ctx, msg); err != nil {
		return nil, false, fmt.Errorf("persist user message: %w", err)
	}
	return msg, false, nil
}

// rebuildMemory seeds an empty window from persisted history, e.g. after a
// restart. Failure only costs context.
func (s *chatService) rebuildMemory(ctx context.Context, ss *model.Session, convID string, currentID uint) {
	if s.memory.Len(convID) > 0 {
		return
	}
	rows, err := s.r.ListRecentMessages(ctx, ss.ID, s.rebuildLimit+1)
	if err != nil {
		s.log.Sugar().Warnw("history rebuild failed", "session_id", ss.Handle, "err", err)
		return
	}
	seed := make([]convmem.Message, 0, len(rows))
	for _, m := range rows {
		if m.ID == currentID {
			continue
		}
		seed = append(seed, toMemory(m))
	}
	if len(seed) > s.rebuildLimit {
		seed = seed[len(seed)-s.rebuildLimit:]
	}
	if len(seed) > 0 && s.memory.Seed(convID, seed) {
		s.log.Sugar().Debugw("conversation memory rebuilt", "session_id", ss.Handle, "messages", len(seed))
	}
}

func (s *chatService) buildPrompt(convID, text string) []llm.Message {
	history := s.memory.Recent(convID, s.memory.Cap())
	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: counselingSystemPrompt})
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == convmem.RoleAssistant {
			role = llm.RoleAssistant
		}
		prompt = append(prompt, llm.Message{Role: role, Content: m.Content})
	}
	return append(prompt, llm.Message{Role: llm.RoleUser, Content: text})
}

// stream forwards fragments until the backend finishes, fails, or the
// caller goes away. It returns whatever was accumulated in every case.
func (s *chatService) stream(ctx context.Context, prompt []llm.Message, emit EmitFunc) (string, string, error) {
	st, err := s.llm.StreamComplete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", model.FinishClientGone, nil
		}
		return "", model.FinishBackendError, err
	}
	defer st.Close()

	var sb strings.Builder
	for {
		frag, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), model.FinishStop, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return sb.String(), model.FinishClientGone, nil
			}
			return sb.String(), model.FinishBackendError, err
		}
		sb.WriteString(frag)
		if err := emit(frag); err != nil {
			return sb.String(), model.FinishClientGone, nil
		}
	}
}

// finalize stores the reply, appends memory and frees the session for the
// next turn. It runs on the request goroutine so it never waits behind
// background jobs.
func (s *chatService) finalize(ctx context.Context, t turn) {
	defer t.release()

	now := time.Now()
	entries := []convmem.Message{{Role: convmem.RoleUser, Content: t.userMsg.Content, CreatedAt: t.userMsg.CreatedAt}}
	if t.reply != "" {
		msg := newAssistantMessage(t.session.ID, t.reply, s.llm.ModelName(), t.finish)
		if err := s.r.CreateMessage(ctx, msg); err != nil {
			s.log.Sugar().Errorw("persist assistant reply failed", "session_id", t.session.Handle, "finish", t.finish, "err", err)
		}
		entries = append(entries, convmem.Message{Role: convmem.RoleAssistant, Content: t.reply, CreatedAt: now})
	}
	s.memory.Append(t.convID, entries...)

	if t.session.AutoTitle {
		title := autoTitle(t.userMsg.Content)
		if err := s.r.UpdateTitle(ctx, t.session.ID, title, false); err != nil {
			s.log.Sugar().Warnw("auto title update failed", "session_id", t.session.Handle, "err", err)
		}
	}
}

// snapshotEmotion analyzes the turn's user message. The snapshot is keyed by
// that message's time, so a slow analysis of an earlier turn cannot replace
// a later one.
func (s *chatService) snapshotEmotion(ctx context.Context, t turn) {
	res := s.emotion.Analyze(ctx, t.userMsg.Content)
	raw, err := res.Marshal()
	if err != nil {
		s.log.Sugar().Warnw("encode emotion snapshot failed", "session_id", t.session.Handle, "err", err)
		return
	}
	stored, err := s.r.UpdateEmotion(ctx, t.session.ID, raw, t.userMsg.CreatedAt.UTC())
	if err != nil {
		s.log.Sugar().Warnw("store emotion snapshot failed", "session_id", t.session.Handle, "err", err)
		return
	}
	s.log.Sugar().Infow("chat turn analyzed",
		"session_id", t.session.Handle,
		"finish", t.finish,
		"reply_len", len(t.reply),
		"emotion", res.PrimaryEmotion,
		"risk_level", res.RiskLevel,
		"stale", !stored,
	)
}

// newAssistantMessage marks replies cut short by a disconnect or backend
// failure as partial.
func newAssistantMessage(sessionID uint, content, modelName, finish string) *model.Message {
	m := &model.Message{
		SessionID:  sessionID,
		SenderType: model.SenderAssistant,
		Content:    content,
		Meta: datatypes.JSONMap{
			"finish":  finish,
			"partial": finish != model.FinishStop,
		},
	}
	if modelName != "" {
		m.ModelName = &modelName
	}
	return m
}

func toMemory(m model.Message) convmem.Message {
	role := convmem.RoleUser
	if m.SenderType == model.SenderAssistant {
		role = convmem.RoleAssistant
	}
	return convmem.Message{Role: role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func autoTitle(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) > autoTitleRunes {
		return string([]rune(text)[:autoTitleRunes]) + "…"
	}
	return text
}

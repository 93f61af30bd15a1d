package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mindnote/counsel/internal/infra/cache"
	"github.com/mindnote/counsel/internal/infra/db"
	"github.com/mindnote/counsel/internal/infra/llm"
	"github.com/mindnote/counsel/internal/modules/model"
	"github.com/mindnote/counsel/internal/modules/repo"
	"github.com/mindnote/counsel/internal/pkg/convmem"
	"github.com/mindnote/counsel/internal/pkg/worker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const anxiousReply = "```json\n" + `{
  "primaryEmotion": "Anxious",
  "emotionScore": 72,
  "isNegative": true,
  "riskLevel": 1,
  "keywords": ["work", "worry", "sleep"],
  "suggestion": "Try a short breathing exercise.",
  "icon": "😟",
  "label": "Anxious",
  "riskDescription": "Mild, situational stress.",
  "improvementSuggestions": ["Breathe slowly", "Write down worries", "Take a walk"]
}` + "\n```"

// fakeLLM scripts the text-generation backend.
type fakeLLM struct {
	mu sync.Mutex

	completeReply string
	completeErr   error
	completions   int
	// completeFn, when set, answers Complete instead of the fields above.
	completeFn func(msgs []llm.Message) (string, error)

	fragments []string
	streamErr error
	openErr   error
	prompts   [][]llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	f.completions++
	fn := f.completeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(msgs)
	}
	return f.completeReply, f.completeErr
}

func (f *fakeLLM) StreamComplete(ctx context.Context, msgs []llm.Message) (llm.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, append([]llm.Message(nil), msgs...))
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeStream{ctx: ctx, frags: append([]string(nil), f.fragments...), err: f.streamErr}, nil
}

func (f *fakeLLM) ModelName() string { return "fake-chat" }

func (f *fakeLLM) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeStream struct {
	ctx   context.Context
	frags []string
	i     int
	err   error
}

func (s *fakeStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.i < len(s.frags) {
		s.i++
		return s.frags[s.i-1], nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error { return nil }

type fakeArchiver struct {
	mu    sync.Mutex
	names []string
	last  any
}

func (a *fakeArchiver) ArchiveTranscript(ctx context.Context, name string, transcript any) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, name)
	a.last = transcript
	return "transcripts/" + name + ".json", nil
}

type testEnv struct {
	db       *gorm.DB
	repo     repo.SessionRepo
	taskRepo repo.AnalysisTaskRepo
	diaries  repo.DiaryRepo
	memory   *convmem.Store
	pool     *worker.Pool
	llm      *fakeLLM
	archiver *fakeArchiver

	tasks    AnalysisTaskService
	emotion  EmotionService
	sessions SessionService
	chat     ChatService
	analysis DiaryAnalysisService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := d.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(d))

	log := zap.NewNop()
	e := &testEnv{
		db:       d,
		repo:     repo.NewSessionRepo(d),
		taskRepo: repo.NewAnalysisTaskRepo(d),
		diaries:  repo.NewDiaryRepo(d),
		memory:   convmem.New(convmem.DefaultWindow),
		pool:     worker.NewPool(2, log),
		llm:      &fakeLLM{completeReply: anxiousReply, fragments: []string{"I hear ", "you. ", "That sounds hard."}},
		archiver: &fakeArchiver{},
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.pool.Shutdown(ctx)
		_ = sqlDB.Close()
	})

	e.tasks = NewAnalysisTaskService(e.taskRepo, e.diaries, repo.NewUserRepo(d), nil, log, 3, 10)
	e.emotion = NewEmotionService(e.llm, e.tasks, log)
	e.sessions = NewSessionService(e.repo, e.memory, e.pool, e.archiver, log)
	e.chat = NewChatService(ChatDeps{
		Sessions: e.sessions,
		Repo:     e.repo,
		Memory:   e.memory,
		LLM:      e.llm,
		Emotion:  e.emotion,
		Locker:   cache.NewLocalTurnLocker(time.Second),
		Pool:     e.pool,
		Log:      log,
	})
	e.analysis = NewDiaryAnalysisService(e.tasks, e.emotion, e.diaries, e.pool, log, 10)
	return e
}

func (e *testEnv) seedUser(t *testing.T, id uint, role string) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.User{ID: id, Nickname: "u", Role: role}).Error)
}

func (e *testEnv) seedDiary(t *testing.T, id, userID uint, content string) *model.Diary {
	t.Helper()
	d := &model.Diary{ID: id, UserID: userID, Content: content}
	require.NoError(t, e.db.Create(d).Error)
	return d
}

func (e *testEnv) messages(t *testing.T, sessionID uint) []model.Message {
	t.Helper()
	msgs, err := e.repo.ListRecentMessages(context.Background(), sessionID, 1000)
	require.NoError(t, err)
	return msgs
}

// collect returns an EmitFunc recording fragments, failing from call failAt
// (1-based) onward when failAt > 0.
func collect(out *[]string, failAt int) EmitFunc {
	calls := 0
	return func(frag string) error {
		calls++
		if failAt > 0 && calls >= failAt {
			return io.ErrClosedPipe
		}
		*out = append(*out, frag)
		return nil
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mindnote/counsel/internal/infra/llm"
	"github.com/mindnote/counsel/internal/modules/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/mindnote/counsel/internal/modules/service")

const emotionSystemPrompt = `You are an emotion analysis assistant for a mental-health journaling app.
Read the user's text and describe its emotional state.

Emotion taxonomy for primaryEmotion (pick one): Happy, Calm, Hopeful, Grateful, Neutral, Tired, Sad, Anxious, Angry, Lonely, Fearful, Overwhelmed.

Risk level rubric:
0 - no concern, everyday feelings
1 - mild distress, short-lived low mood or stress
2 - moderate distress, persistent negative mood affecting daily life
3 - high concern, hopelessness or any mention of self-harm

Reply with a single JSON object and nothing else, using exactly these fields:
{
  "primaryEmotion": string,
  "emotionScore": integer 0-100 (intensity),
  "isNegative": boolean,
  "riskLevel": integer 0-3,
  "keywords": 3 to 5 short strings,
  "suggestion": one or two supportive sentences,
  "icon": a single emoji,
  "label": short display label,
  "riskDescription": one sentence explaining the risk level,
  "improvementSuggestions": 3 to 4 short actionable strings
}`

var errNoPrimaryEmotion = errors.New("analysis reply has no primaryEmotion")

type EmotionService interface {
	// Analyze never fails; any problem yields the default snapshot.
	Analyze(ctx context.Context, text string) model.EmotionAnalysisResult
	// AnalyzeAsync runs Analyze under the task lifecycle. The returned error
	// is the recorded failure reason, or a task bookkeeping error.
	AnalyzeAsync(ctx context.Context, taskID uint, text string) (model.EmotionAnalysisResult, error)
}

type emotionService struct {
	llm   llm.Client
	tasks AnalysisTaskService
	log   *zap.Logger
}

func NewEmotionService(client llm.Client, tasks AnalysisTaskService, log *zap.Logger) EmotionService {
	return &emotionService{llm: client, tasks: tasks, log: log}
}

func (s *emotionService) Analyze(ctx context.Context, text string) model.EmotionAnalysisResult {
	res, err := s.analyze(ctx, text)
	if err != nil {
		s.log.Sugar().Warnw("emotion analysis fell back to default", "err", err)
		return model.DefaultEmotionResult()
	}
	return res
}

func (s *emotionService) AnalyzeAsync(ctx context.Context, taskID uint, text string) (model.EmotionAnalysisResult, error) {
	if err := s.tasks.MarkProcessing(ctx, taskID); err != nil {
		return model.DefaultEmotionResult(), fmt.Errorf("mark task %d processing: %w", taskID, err)
	}

	res, err := s.analyze(ctx, text)
	if err != nil {
		if merr := s.tasks.MarkFailed(ctx, taskID, err.Error()); merr != nil {
			s.log.Sugar().Errorw("mark task failed", "task_id", taskID, "err", merr)
		}
		s.log.Sugar().Warnw("analysis task failed", "task_id", taskID, "err", err)
		return model.DefaultEmotionResult(), err
	}

	if err := s.tasks.MarkCompleted(ctx, taskID); err != nil {
		return res, fmt.Errorf("mark task %d completed: %w", taskID, err)
	}
	return res, nil
}

func (s *emotionService) analyze(ctx context.Context, text string) (model.EmotionAnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "emotion.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("text.len", len(text)))

	raw, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: emotionSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return model.EmotionAnalysisResult{}, err
	}

	res, err := parseEmotionReply(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparsable reply")
		return model.EmotionAnalysisResult{}, err
	}
	span.SetAttributes(
		attribute.String("emotion.primary", res.PrimaryEmotion),
		attribute.Int("emotion.risk_level", res.RiskLevel),
	)
	return res, nil
}

// looseNumber accepts 72, 72.4 and "72".
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*n = looseNumber(f)
	return nil
}

// emotionReply is the loose shape models actually return: numbers may come
// back as floats or strings and the timestamp is ours to set.
type emotionReply struct {
	PrimaryEmotion         string      `json:"primaryEmotion"`
	EmotionScore           looseNumber `json:"emotionScore"`
	IsNegative             bool        `json:"isNegative"`
	RiskLevel              looseNumber `json:"riskLevel"`
	Keywords               []string    `json:"keywords"`
	Suggestion             string      `json:"suggestion"`
	Icon                   string      `json:"icon"`
	Label                  string      `json:"label"`
	RiskDescription        string      `json:"riskDescription"`
	ImprovementSuggestions []string    `json:"improvementSuggestions"`
}

func parseEmotionReply(raw string) (model.EmotionAnalysisResult, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return model.EmotionAnalysisResult{}, errors.New("empty analysis reply")
	}

	var r emotionReply
	if err := sonic.UnmarshalString(cleaned, &r); err != nil {
		return model.EmotionAnalysisResult{}, fmt.Errorf("decode analysis reply: %w", err)
	}
	if strings.TrimSpace(r.PrimaryEmotion) == "" {
		return model.EmotionAnalysisResult{}, errNoPrimaryEmotion
	}

	res := model.EmotionAnalysisResult{
		PrimaryEmotion:         r.PrimaryEmotion,
		EmotionScore:           int(math.Round(float64(r.EmotionScore))),
		IsNegative:             r.IsNegative,
		RiskLevel:              int(math.Round(float64(r.RiskLevel))),
		Keywords:               r.Keywords,
		Suggestion:             strings.TrimSpace(r.Suggestion),
		Icon:                   strings.TrimSpace(r.Icon),
		Label:                  strings.TrimSpace(r.Label),
		RiskDescription:        strings.TrimSpace(r.RiskDescription),
		ImprovementSuggestions: r.ImprovementSuggestions,
		Timestamp:              time.Now(),
	}
	res.Normalize()
	return res, nil
}

// stripFences removes markdown code fences around the reply and any chatter
// outside the outermost JSON object.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(s[:nl]), "{") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return s
}

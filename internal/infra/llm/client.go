package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mindnote/counsel/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

var ErrEmptyCompletion = errors.New("completion returned no choices")

type Message struct {
	Role    string
	Content string
}

// Stream yields text fragments until Recv returns io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client is the text-generation backend. Both calls are network calls and
// may fail at any point.
type Client interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
	StreamComplete(ctx context.Context, msgs []Message) (Stream, error)
	ModelName() string
}

type openAIClient struct {
	client        *openai.Client
	chatModel     string
	analysisModel string
	temperature   float32
	maxTokens     int
	log           *zap.Logger
}

// NewOpenAI talks to any OpenAI-compatible chat completion endpoint.
func NewOpenAI(cfg config.LLMCfg, log *zap.Logger) Client {
	cc := openai.DefaultConfig(cfg.ApiKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if cfg.TimeoutSec > 0 {
		cc.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}
	}
	return &openAIClient{
		client:        openai.NewClientWithConfig(cc),
		chatModel:     cfg.ChatModel,
		analysisModel: cfg.AnalysisModel,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		log:           log,
	}
}

func (c *openAIClient) ModelName() string { return c.chatModel }

func toOpenAI(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (c *openAIClient) Complete(ctx context.Context, msgs []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.analysisModel,
		Messages:    toOpenAI(msgs),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		c.log.Sugar().Warnw("chat completion failed", "model", c.analysisModel, "err", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) StreamComplete(ctx context.Context, msgs []Message) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    toOpenAI(msgs),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      true,
	})
	if err != nil {
		c.log.Sugar().Warnw("chat completion stream creation failed", "model", c.chatModel, "err", err)
		return nil, fmt.Errorf("open chat stream: %w", err)
	}
	return &openAIStream{s: stream}, nil
}

type openAIStream struct {
	s *openai.ChatCompletionStream
}

// Recv skips role-only and empty deltas so callers only see text.
func (o *openAIStream) Recv() (string, error) {
	for {
		resp, err := o.s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("receive chat fragment: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (o *openAIStream) Close() error {
	return o.s.Close()
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
)

// ErrorMarker 是失败回复的前缀。
const ErrorMarker = "❗ 發生錯誤："

// Config fixes the request parameters sent with every completion.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature *float32
	Window      WindowOptions
}

// ConfigFrom derives the invoker config from the service config and a resolved system prompt.
func ConfigFrom(cfg config.AIConfig, systemPrompt string) Config {
	window := DefaultWindowOptions()
	window.SystemInstruction = systemPrompt
	return Config{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature32(),
		Window:      window,
	}
}

// Completion is the outcome of one model call. Failed completions carry the
// user-visible error text in Text and the cause in Err.
type Completion struct {
	Text   string
	Failed bool
	Err    error
}

// Turn converts the completion into a history entry for question.
func (c Completion) Turn(question string) chat.Turn {
	return chat.Turn{Question: question, Answer: c.Text, Failed: c.Failed}
}

func failed(err error) Completion {
	return Completion{Text: ErrorMarker + err.Error(), Failed: true, Err: err}
}

// Service wraps the chat model in an eino chain.
type Service struct {
	cfg    Config
	chain  compose.Runnable[[]*schema.Message, *schema.Message]
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService compiles the completion chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:    cfg,
		chain:  runnable,
		logger: logger,
		tracer: otel.Tracer("github.com/zhouzirui/compeq-chat/backend/internal/service/ai"),
	}, nil
}

// BuildMessages applies the configured window to the active history.
func (s *Service) BuildMessages(history []chat.Turn, prompt string, content *extract.Content) []*schema.Message {
	return BuildMessages(history, prompt, content, s.cfg.Window)
}

func (s *Service) callOptions() compose.Option {
	opts := []model.Option{model.WithMaxTokens(s.cfg.MaxTokens)}
	if s.cfg.Model != "" {
		opts = append(opts, model.WithModel(s.cfg.Model))
	}
	if s.cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(*s.cfg.Temperature))
	}
	return compose.WithChatModelOption(opts...)
}

func (s *Service) startSpan(ctx context.Context, name string, messages []*schema.Message) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.model", s.cfg.Model),
		attribute.Int("llm.max_tokens", s.cfg.MaxTokens),
		attribute.Int("llm.messages", len(messages)),
	))
}

// Complete calls the model once. Errors are not retried; they become a failed
// Completion whose text starts with ErrorMarker.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message) Completion {
	ctx, span := s.startSpan(ctx, "ai.Complete", messages)
	defer span.End()

	resp, err := s.chain.Invoke(ctx, messages, s.callOptions())
	if err == nil && resp == nil {
		err = errors.New("empty response from model")
	}
	if err != nil {
		return s.fail(span, err)
	}

	span.SetAttributes(attribute.Int("llm.reply_chars", len(resp.Content)))
	s.logger.Info("completion generated", zap.String("model", s.cfg.Model), zap.Int("length", len(resp.Content)))
	return Completion{Text: resp.Content}
}

// Stream is Complete with incremental delivery: onDelta receives each chunk as it arrives.
// A failure at any point discards the partial answer and yields a failed Completion.
func (s *Service) Stream(ctx context.Context, messages []*schema.Message, onDelta func(string)) Completion {
	ctx, span := s.startSpan(ctx, "ai.Stream", messages)
	defer span.End()

	sr, err := s.chain.Stream(ctx, messages, s.callOptions())
	if err != nil {
		return s.fail(span, err)
	}
	defer sr.Close()

	var b strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(span, err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		b.WriteString(chunk.Content)
		if onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	span.SetAttributes(attribute.Int("llm.reply_chars", b.Len()))
	s.logger.Info("completion streamed", zap.String("model", s.cfg.Model), zap.Int("length", b.Len()))
	return Completion{Text: b.String()}
}

func (s *Service) fail(span trace.Span, err error) Completion {
	span.RecordError(err)
	span.SetStatus(codes.Error, "completion failed")
	s.logger.Error("completion failed", zap.String("model", s.cfg.Model), zap.Error(err))
	return failed(err)
}

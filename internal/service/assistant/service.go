// Package assistant runs one chat turn end to end: extract the upload, build the
// context window, call the model and append the result to the active session.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/export"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
)

var (
	ErrEmptyPrompt  = errors.New("prompt must not be empty")
	ErrModelOffline = errors.New("language model is not configured")
)

// Completer is the model side of a turn.
type Completer interface {
	BuildMessages(history []chat.Turn, prompt string, content *extract.Content) []*schema.Message
	Complete(ctx context.Context, messages []*schema.Message) ai.Completion
	Stream(ctx context.Context, messages []*schema.Message, onDelta func(string)) ai.Completion
}

// Question is one submitted prompt with an optional file.
type Question struct {
	User   string
	Prompt string
	Upload *extract.Upload
}

// Answer reports what was appended to the session.
type Answer struct {
	Session   string       `json:"session"`
	Turn      chat.Turn    `json:"turn"`
	FileKind  extract.Kind `json:"fileKind,omitempty"`
	PreviewID string       `json:"previewId,omitempty"`
}

type Service struct {
	chats     *chatservice.Service
	extractor *extract.Extractor
	llm       Completer
	previews  *PreviewCache
	logger    *zap.Logger
}

// NewService wires the turn pipeline. llm may be nil when no model is configured;
// Ask then fails with ErrModelOffline while session management keeps working.
func NewService(chats *chatservice.Service, extractor *extract.Extractor, llm Completer, previews *PreviewCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if previews == nil {
		previews = NewPreviewCache(0, 0)
	}
	return &Service{
		chats:     chats,
		extractor: extractor,
		llm:       llm,
		previews:  previews,
		logger:    logger,
	}
}

func (s *Service) Chats() *chatservice.Service { return s.chats }

func (s *Service) Previews() *PreviewCache { return s.previews }

// Ask runs one turn. A non-nil onDelta switches to streaming delivery.
// Model failures are not errors: they are stored as failed turns and returned in Answer.
func (s *Service) Ask(ctx context.Context, q Question, onDelta func(string)) (Answer, error) {
	p, err := s.Prepare(ctx, q)
	if err != nil {
		return Answer{}, err
	}
	return s.Run(ctx, p, onDelta)
}

// Prepared is a validated question whose upload is already extracted.
type Prepared struct {
	question Question
	conv     *chatservice.Conversation
	content  *extract.Content
	answer   Answer
}

// Prepare does everything that can fail before the model is called: prompt and
// model checks, opening the user's conversation and decoding the upload.
func (s *Service) Prepare(ctx context.Context, q Question) (*Prepared, error) {
	if s.llm == nil {
		return nil, ErrModelOffline
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	conv, err := s.chats.Open(ctx, q.User)
	if err != nil {
		return nil, err
	}

	p := &Prepared{question: q, conv: conv}
	if q.Upload != nil {
		extracted, err := s.extractor.Extract(ctx, *q.Upload)
		if err != nil {
			return nil, err
		}
		p.content = &extracted
		p.answer.FileKind = extracted.Kind
		if extracted.IsImage() {
			p.answer.PreviewID = s.previews.Put(extracted.PNG)
		}
	}
	return p, nil
}

// Run calls the model for a prepared question and appends the turn to the session
// that was active when the call started.
func (s *Service) Run(ctx context.Context, p *Prepared, onDelta func(string)) (Answer, error) {
	pending := p.conv.BeginTurn()
	messages := s.llm.BuildMessages(pending.History(), p.question.Prompt, p.content)

	var completion ai.Completion
	if onDelta != nil {
		completion = s.llm.Stream(ctx, messages, onDelta)
	} else {
		completion = s.llm.Complete(ctx, messages)
	}

	turn := completion.Turn(p.question.Prompt)
	session, err := p.conv.CommitTurn(ctx, pending, turn)
	if err != nil {
		return Answer{}, fmt.Errorf("save turn: %w", err)
	}

	s.logger.Info("turn completed",
		zap.String("user", p.question.User),
		zap.String("session", session),
		zap.Bool("failed", turn.Failed),
		zap.Int("messages", len(messages)),
	)

	answer := p.answer
	answer.Session = session
	answer.Turn = turn
	return answer, nil
}

// Transcript loads a session for export; an empty name selects the active session.
func (s *Service) Transcript(ctx context.Context, user, session string) (export.Transcript, error) {
	conv, err := s.chats.Open(ctx, user)
	if err != nil {
		return export.Transcript{}, err
	}
	if session == "" {
		session = conv.Active()
	}
	turns, err := conv.History(session)
	if err != nil {
		return export.Transcript{}, err
	}
	return export.Transcript{User: user, Session: session, Turns: turns}, nil
}

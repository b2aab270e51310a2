package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// AnthropicConfig 描述 Claude 模型的连接参数。
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// AnthropicChatModel implements model.ChatModel on top of the Anthropic Messages API.
type AnthropicChatModel struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropicChatModel(cfg AnthropicConfig) *AnthropicChatModel {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &AnthropicChatModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	params, err := m.params(input, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return schema.AssistantMessage(b.String(), nil), nil
}

func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	params, err := m.params(input, opts...)
	if err != nil {
		return nil, err
	}

	stream := m.client.Messages.NewStreaming(ctx, params)
	sr, sw := schema.Pipe[*schema.Message](16)
	go func() {
		defer sw.Close()
		defer stream.Close()
		for stream.Next() {
			event, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(delta.Text, nil), nil); closed {
				return
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			sw.Send(nil, fmt.Errorf("anthropic stream failed: %w", err))
		}
	}()
	return sr, nil
}

func (m *AnthropicChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	return ErrToolsUnsupported
}

func (m *AnthropicChatModel) params(input []*schema.Message, opts ...model.Option) (anthropic.MessageNewParams, error) {
	modelName, maxTokens := m.model, m.maxTokens
	options := model.GetCommonOptions(&model.Options{Model: &modelName, MaxTokens: &maxTokens}, opts...)
	return anthropicParams(input, options)
}

// anthropicParams 把 eino 消息转换成 Messages API 请求；system 消息合并到 System 字段。
func anthropicParams(input []*schema.Message, options *model.Options) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{}
	if options.Model != nil {
		params.Model = anthropic.Model(*options.Model)
	}
	if options.MaxTokens != nil {
		params.MaxTokens = int64(*options.MaxTokens)
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*options.Temperature))
	}

	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			params.System = append(params.System, anthropic.TextBlockParam{Text: textOf(msg)})
		case schema.Assistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(textOf(msg))))
		case schema.User:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(textOf(msg))}
			images, err := imagesOf(msg)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			for _, img := range images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, img.Base64))
			}
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	if len(params.Messages) == 0 {
		return anthropic.MessageNewParams{}, errors.New("at least one user message is required")
	}
	return params, nil
}

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
)

// OllamaConfig 描述本地 Ollama 服务。Host 为空时读取 OLLAMA_HOST 环境变量。
type OllamaConfig struct {
	Host  string
	Model string
}

// OllamaChatModel implements model.ChatModel against an Ollama server.
type OllamaChatModel struct {
	client *api.Client
	model  string
}

func NewOllamaChatModel(cfg OllamaConfig) (*OllamaChatModel, error) {
	var client *api.Client
	if cfg.Host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	} else {
		host := cfg.Host
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		base, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
		}
		client = api.NewClient(base, http.DefaultClient)
	}
	return &OllamaChatModel{client: client, model: cfg.Model}, nil
}

func (m *OllamaChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req, err := m.request(input, false, opts...)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	err = m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}
	return schema.AssistantMessage(b.String(), nil), nil
}

func (m *OllamaChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req, err := m.request(input, true, opts...)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](16)
	go func() {
		defer sw.Close()
		err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if closed := sw.Send(schema.AssistantMessage(resp.Message.Content, nil), nil); closed {
				return context.Canceled
			}
			return nil
		})
		if err != nil {
			sw.Send(nil, fmt.Errorf("ollama chat failed: %w", err))
		}
	}()
	return sr, nil
}

func (m *OllamaChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	return ErrToolsUnsupported
}

func (m *OllamaChatModel) request(input []*schema.Message, stream bool, opts ...model.Option) (*api.ChatRequest, error) {
	modelName := m.model
	options := model.GetCommonOptions(&model.Options{Model: &modelName}, opts...)
	req, err := ollamaRequest(input, options)
	if err != nil {
		return nil, err
	}
	req.Stream = &stream
	return req, nil
}

// ollamaRequest 转换消息；图片以原始字节随 user 消息发送。
func ollamaRequest(input []*schema.Message, options *model.Options) (*api.ChatRequest, error) {
	req := &api.ChatRequest{Options: map[string]any{}}
	if options.Model != nil {
		req.Model = *options.Model
	}
	if options.Temperature != nil {
		req.Options["temperature"] = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.Options["num_predict"] = *options.MaxTokens
	}

	for _, msg := range input {
		out := api.Message{Role: string(msg.Role), Content: textOf(msg)}
		images, err := imagesOf(msg)
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			data, err := img.Bytes()
			if err != nil {
				return nil, fmt.Errorf("decode inline image: %w", err)
			}
			out.Images = append(out.Images, api.ImageData(data))
		}
		req.Messages = append(req.Messages, out)
	}
	return req, nil
}

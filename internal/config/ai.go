package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/compeq-chat/backend/internal/service/ai/provider"
)

// 支持的模型提供方。
const (
	ProviderArk       = "ark"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider          string
	Model             string
	APIKey            string
	AccessKey         string
	SecretKey         string
	BaseURL           string
	Region            string
	AnthropicAPIKey   string
	OllamaHost        string
	Temperature       *float64
	MaxTokens         int
	SystemInstruction string
	PersonaID         string
}

// Enabled 表示当前提供方所需的凭证是否齐全。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	case ProviderAnthropic:
		return c.AnthropicAPIKey != ""
	case ProviderOllama:
		return true
	default:
		return false
	}
}

// Temperature32 returns the configured temperature in the width eino expects.
func (c AIConfig) Temperature32() *float32 {
	if c.Temperature == nil {
		return nil
	}
	val := float32(*c.Temperature)
	return &val
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
	}

	switch c.Provider {
	case ProviderAnthropic:
		return provider.NewAnthropicChatModel(provider.AnthropicConfig{
			APIKey:    c.AnthropicAPIKey,
			BaseURL:   c.BaseURL,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
		}), nil
	case ProviderOllama:
		return provider.NewOllamaChatModel(provider.OllamaConfig{
			Host:  c.OllamaHost,
			Model: c.Model,
		})
	}

	maxTokens := c.MaxTokens
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: c.Temperature32(),
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(overlay aiOverlay) (AIConfig, error) {
	providerName := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderArk))
	switch providerName {
	case ProviderArk, ProviderAnthropic, ProviderOllama:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: expected ark, anthropic or ollama", providerName)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		temperature = overlay.Temperature
	}
	if temperature == nil {
		val := 0.3
		temperature = &val
	}

	maxTokens := 1500
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AIConfig{}, fmt.Errorf("invalid AI_MAX_TOKENS value %d: must be positive", *override)
		}
		maxTokens = *override
	}

	modelName := strings.TrimSpace(os.Getenv("AI_MODEL"))
	if modelName == "" {
		modelName = strings.TrimSpace(os.Getenv("Model"))
	}
	if modelName == "" {
		modelName = orDefault(overlay.Model, "gpt-4o")
	}

	baseURL := strings.TrimSpace(os.Getenv("AI_BASE_URL"))
	if baseURL == "" && providerName == ProviderArk {
		baseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	}

	return AIConfig{
		Provider:          providerName,
		Model:             modelName,
		APIKey:            strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:         strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:         strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		BaseURL:           baseURL,
		Region:            getEnvOrDefault("ARK_REGION", "cn-beijing"),
		AnthropicAPIKey:   strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		OllamaHost:        strings.TrimSpace(os.Getenv("OLLAMA_HOST")),
		Temperature:       temperature,
		MaxTokens:         maxTokens,
		SystemInstruction: getEnvOrDefault("SYSTEM_INSTRUCTION", overlay.SystemInstruction),
		PersonaID:         getEnvOrDefault("CHAT_PERSONA", orDefault(overlay.PersonaID, "compeq-assistant")),
	}, nil
}

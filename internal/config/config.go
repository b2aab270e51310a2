package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Store     StoreConfig
	Extract   ExtractConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// Load 从环境变量加载配置，CHAT_CONFIG_FILE 指向的 TOML 文件提供默认值。
func Load() (*Config, error) {
	overlay, err := loadOverlay(strings.TrimSpace(os.Getenv("CHAT_CONFIG_FILE")))
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(overlay.AI)
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	extract, err := loadExtractConfig(overlay.Extract)
	if err != nil {
		return nil, err
	}

	telemetry, err := loadTelemetryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Store:     store,
		Extract:   extract,
		Log:       loadLogConfig(),
		Telemetry: telemetry,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	AllowedOrigin  string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	maxUpload := int64(20 << 20)
	if override, err := parseOptionalIntEnv("MAX_UPLOAD_BYTES"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid MAX_UPLOAD_BYTES value %d: must be positive", *override)
		}
		maxUpload = int64(*override)
	}

	cfg := ServerConfig{
		MaxUploadBytes: maxUpload,
		AllowedOrigin:  getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*"),
	}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// StoreConfig 描述会话持久化位置。
type StoreConfig struct {
	Backend       string
	Dir           string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", "file"))
	switch backend {
	case "file", "sqlite", "mongo", "memory":
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q: expected file, sqlite, mongo or memory", backend)
	}

	cfg := StoreConfig{
		Backend:       backend,
		Dir:           getEnvOrDefault("STORE_DIR", "data"),
		SQLitePath:    getEnvOrDefault("STORE_SQLITE_PATH", "data/chat.db"),
		MongoURI:      strings.TrimSpace(os.Getenv("STORE_MONGO_URI")),
		MongoDatabase: getEnvOrDefault("STORE_MONGO_DATABASE", "compeq_chat"),
	}

	if backend == "mongo" && cfg.MongoURI == "" {
		return StoreConfig{}, fmt.Errorf("STORE_MONGO_URI is required when STORE_BACKEND=mongo")
	}
	return cfg, nil
}

// ExtractConfig 控制上传文件的文字摘录方式。
type ExtractConfig struct {
	MaxChars     int
	DocxMode     string
	DocxKeywords []string
	SheetMode    string
}

var defaultDocxKeywords = []string{"問題", "建議", "風險", "錯誤", "problem", "suggestion", "risk", "error"}

func loadExtractConfig(overlay extractOverlay) (ExtractConfig, error) {
	maxChars := 1500
	if override, err := parseOptionalIntEnv("EXTRACT_MAX_CHARS"); err != nil {
		return ExtractConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ExtractConfig{}, fmt.Errorf("invalid EXTRACT_MAX_CHARS value %d: must be positive", *override)
		}
		maxChars = *override
	}

	docxMode := strings.ToLower(getEnvOrDefault("EXTRACT_DOCX_MODE", orDefault(overlay.DocxMode, "full")))
	if docxMode != "full" && docxMode != "keywords" {
		return ExtractConfig{}, fmt.Errorf("invalid EXTRACT_DOCX_MODE value %q: expected full or keywords", docxMode)
	}

	sheetMode := strings.ToLower(getEnvOrDefault("EXTRACT_SHEET_MODE", orDefault(overlay.SheetMode, "cells")))
	if sheetMode != "cells" && sheetMode != "summary" {
		return ExtractConfig{}, fmt.Errorf("invalid EXTRACT_SHEET_MODE value %q: expected cells or summary", sheetMode)
	}

	keywords := defaultDocxKeywords
	if len(overlay.DocxKeywords) > 0 {
		keywords = overlay.DocxKeywords
	}
	if raw := strings.TrimSpace(os.Getenv("EXTRACT_DOCX_KEYWORDS")); raw != "" {
		keywords = splitList(raw)
	}

	return ExtractConfig{
		MaxChars:     maxChars,
		DocxMode:     docxMode,
		DocxKeywords: append([]string(nil), keywords...),
		SheetMode:    sheetMode,
	}, nil
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

// TelemetryConfig 描述 OpenTelemetry 导出配置。
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	enabled, err := parseBoolEnv("OTEL_ENABLED", false)
	if err != nil {
		return TelemetryConfig{}, err
	}
	insecure, err := parseBoolEnv("OTEL_INSECURE", true)
	if err != nil {
		return TelemetryConfig{}, err
	}

	return TelemetryConfig{
		Enabled:     enabled,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    insecure,
		ServiceName: getEnvOrDefault("OTEL_SERVICE_NAME", "compeq-chat"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

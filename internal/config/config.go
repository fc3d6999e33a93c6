package config

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Chat      ChatConfig
	Speech    SpeechConfig
	Ark       ArkConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	switch c.Chat.Provider {
	case ProviderOpenAI:
	case ProviderArk:
		if !c.Ark.Enabled() {
			return fmt.Errorf("CHAT_PROVIDER=ark requires ARK_MODEL and ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY)")
		}
	default:
		return fmt.Errorf("invalid CHAT_PROVIDER value %q", c.Chat.Provider)
	}

	if c.Speech.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid SPEECH_MAX_UPLOAD_BYTES value %d", c.Speech.MaxUploadBytes)
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port              string        `env:"PORT" env-default:"8080"`
	ReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" env-default:"5s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	UIEnabled         bool          `env:"UI_ENABLED" env-default:"true"`

	// Addr 由 Port 归一化得到。
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// OpenAIConfig holds the single upstream credential shared by both relays.
type OpenAIConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY"`
	BaseURL string        `env:"OPENAI_BASE_URL"`
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" env-default:"60s"`
}

// NewClient 使用配置创建 OpenAI 客户端。
func (c OpenAIConfig) NewClient() *openai.Client {
	clientConfig := openai.DefaultConfig(c.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); base != "" {
		clientConfig.BaseURL = base
	}
	clientConfig.HTTPClient = &http.Client{Timeout: c.Timeout}
	return openai.NewClientWithConfig(clientConfig)
}

// ChatConfig 描述聊天中继配置。
type ChatConfig struct {
	Provider      string `env:"CHAT_PROVIDER" env-default:"openai"`
	Model         string `env:"OPENAI_CHAT_MODEL" env-default:"ft:gpt-3.5-turbo-0613:personal:ai-poet:88GTGA7b"`
	TokenCounting bool   `env:"CHAT_TOKEN_COUNTING" env-default:"true"`
}

// SpeechConfig 描述语音中继配置
type SpeechConfig struct {
	TranscriptionModel string `env:"OPENAI_TRANSCRIPTION_MODEL" env-default:"whisper-1"`
	SpeechModel        string `env:"OPENAI_SPEECH_MODEL" env-default:"tts-1"`
	Voice              string `env:"OPENAI_SPEECH_VOICE" env-default:"alloy"`
	MaxUploadBytes     int64  `env:"SPEECH_MAX_UPLOAD_BYTES" env-default:"33554432"`
}

// ArkConfig 描述 Ark 大模型相关配置。
type ArkConfig struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" env-default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" env-default:"cn-beijing"`
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}

// LogConfig 描述日志轮转配置，File 为空时只写 stderr。
type LogConfig struct {
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

// TelemetryConfig 描述 OpenTelemetry 导出配置。
type TelemetryConfig struct {
	Enabled bool   `env:"TELEMETRY_ENABLED" env-default:"false"`
	Dir     string `env:"TELEMETRY_DIR" env-default:"logs"`
}

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	validator "github.com/go-playground/validator/v10"
)

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	openAIKeyPrefix = "sk-"
)

var (
	ErrMissingAPIKey   = errors.New(`OpenAI API key not found: set OPENAI_API_KEY="sk-your_key_here" in the environment or .env file`)
	ErrMalformedAPIKey = errors.New(`OpenAI API key is malformed: OPENAI_API_KEY must start with "sk-"`)
	ErrMissingArkCreds = errors.New("Ark credentials not found: set ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY) and ARK_MODEL")
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	AI      AIConfig
	Session SessionConfig
	Rules   RulesConfig
}

// Load 从环境变量加载配置，并校验模型密钥。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	cfg.Server = server

	if err := cfg.AI.loadOptional(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string `env:"-"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// SessionConfig 描述登录会话签发配置。
type SessionConfig struct {
	Secret     string        `env:"SESSION_SECRET"`
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"24h" validate:"gt=0"`
	CookieName string        `env:"SESSION_COOKIE" envDefault:"feela_session" validate:"required"`
}

// RulesConfig points at an optional rule table overriding the embedded one.
type RulesConfig struct {
	File string `env:"FEELA_RULES_FILE"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string        `env:"LLM_PROVIDER" envDefault:"openai" validate:"oneof=openai ark"`
	Timeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1" validate:"url"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo" validate:"required"`

	ArkAPIKey    string `env:"ARK_API_KEY"`
	ArkAccessKey string `env:"ARK_ACCESS_KEY"`
	ArkSecretKey string `env:"ARK_SECRET_KEY"`
	ArkModel     string `env:"ARK_MODEL"`
	ArkBaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion    string `env:"ARK_REGION" envDefault:"cn-beijing"`

	Temperature *float64 `env:"-"`
	MaxTokens   *int     `env:"-"`
}

func (c *AIConfig) loadOptional() error {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return err
	}

	c.Temperature = temperature
	c.MaxTokens = maxTokens
	return nil
}

// Validate 确认所选模型提供方的凭证齐全且格式正确。
func (c AIConfig) Validate() error {
	switch c.Provider {
	case ProviderArk:
		hasKey := c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != "")
		if !hasKey || c.ArkModel == "" {
			return ErrMissingArkCreds
		}
		return nil
	default:
		key := strings.TrimSpace(c.APIKey)
		if key == "" {
			return ErrMissingAPIKey
		}
		if !strings.HasPrefix(key, openAIKeyPrefix) {
			return ErrMalformedAPIKey
		}
		return nil
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	if c.Provider == ProviderArk {
		timeout := c.Timeout
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.ArkBaseURL,
			Region:      c.ArkRegion,
			APIKey:      c.ArkAPIKey,
			AccessKey:   c.ArkAccessKey,
			SecretKey:   c.ArkSecretKey,
			Model:       c.ArkModel,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			Timeout:     &timeout,
		})
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      strings.TrimSpace(c.APIKey),
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Timeout:     c.Timeout,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	})
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

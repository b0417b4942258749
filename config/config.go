package config

import (
	"errors"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTP struct {
	Port              int           `yaml:"port" env:"PORT" env-default:"3000"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type OpenAI struct {
	APIKey      string  `env:"OPENAI_API_KEY" env-required:"true"`
	Model       string  `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	BaseURL     string  `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Temperature float32 `yaml:"temperature" env:"MODEL_TEMPERATURE" env-default:"1"`
}

type History struct {
	MaxTurns          int           `yaml:"max_turns" env:"MAX_TURNS" env-default:"20"`
	SystemPrompt      string        `yaml:"system_prompt" env:"SYSTEM_PROMPT" env-default:"You are a helpful chatbot. Answer briefly and clearly."`
	CompletionTimeout time.Duration `yaml:"completion_timeout" env:"COMPLETION_TIMEOUT" env-default:"60s"`
}

type Log struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

type Telegram struct {
	APIToken          string  `env:"TELEGRAM_APITOKEN" env-required:"true"`
	AllowedTelegramID []int64 `yaml:"allowed_telegram_id" env:"ALLOWED_TELEGRAM_ID" env-separator:","`
}

type Redis struct {
	Endpoint string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type ChatServer struct {
	URL            string        `yaml:"url" env:"CHAT_SERVER_URL" env-default:"http://localhost:3000"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CHAT_SERVER_REQUEST_TIMEOUT" env-default:"90s"`
}

type ServerConfig struct {
	HTTP    HTTP    `yaml:"http"`
	OpenAI  OpenAI  `yaml:"openai"`
	History History `yaml:"history"`
	Log     Log     `yaml:"log"`
}

type TelegramConfig struct {
	Telegram   Telegram   `yaml:"telegram"`
	Redis      Redis      `yaml:"redis"`
	ChatServer ChatServer `yaml:"chat_server"`
	Log        Log        `yaml:"log"`
}

var (
	ErrInvalidMaxTurns          = errors.New("history.max_turns must be positive")
	ErrInvalidCompletionTimeout = errors.New("history.completion_timeout must be positive")
	ErrEmptyChatServerURL       = errors.New("chat_server.url is required")
)

// LoadServerConfig reads cfgPath (if set) and then the environment.
func LoadServerConfig(cfgPath string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := read(cfgPath, &cfg); err != nil {
		return nil, err
	}
	if cfg.History.MaxTurns <= 0 {
		return nil, ErrInvalidMaxTurns
	}
	if cfg.History.CompletionTimeout <= 0 {
		return nil, ErrInvalidCompletionTimeout
	}
	return &cfg, nil
}

func LoadTelegramConfig(cfgPath string) (*TelegramConfig, error) {
	var cfg TelegramConfig
	if err := read(cfgPath, &cfg); err != nil {
		return nil, err
	}
	if cfg.ChatServer.URL == "" {
		return nil, ErrEmptyChatServerURL
	}
	return &cfg, nil
}

func read(cfgPath string, cfg any) error {
	if cfgPath == "" {
		return cleanenv.ReadEnv(cfg)
	}
	return cleanenv.ReadConfig(cfgPath, cfg)
}

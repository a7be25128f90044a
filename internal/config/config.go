package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// OpenAIConfig holds credentials for the enrichment and transcription
// collaborators. An empty APIKey disables both.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	WhisperModel string
}

// Config keeps runtime settings for the bot and the API server. It is
// built once in Load and passed to collaborators by parameter.
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	HTTPAddr          string
	MiniAppURL        string
	OpenAI            OpenAIConfig
	ReportInterval    time.Duration
	WebhookRatePerMin int
}

// AIEnabled reports whether the optional AI collaborators are configured.
func (c Config) AIEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("DATABASE_URL", "echo-bot.db")
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("WHISPER_MODEL", "whisper-1")
	v.SetDefault("REPORT_INTERVAL_HOURS", 0)
	v.SetDefault("WEBHOOK_RATE_PER_MIN", 60)

	cfg := Config{
		TelegramToken: strings.TrimSpace(v.GetString("BOT_TOKEN")),
		DatabaseURL:   strings.TrimSpace(v.GetString("DATABASE_URL")),
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		MiniAppURL:    strings.TrimSpace(v.GetString("MINIAPP_URL")),
		OpenAI: OpenAIConfig{
			APIKey:       strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
			BaseURL:      strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
			Model:        v.GetString("OPENAI_MODEL"),
			WhisperModel: v.GetString("WHISPER_MODEL"),
		},
		ReportInterval:    time.Duration(v.GetInt("REPORT_INTERVAL_HOURS")) * time.Hour,
		WebhookRatePerMin: v.GetInt("WEBHOOK_RATE_PER_MIN"),
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}

	return cfg, nil
}

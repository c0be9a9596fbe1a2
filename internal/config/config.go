package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level sdrbot configuration.
type Config struct {
	Server     ServerConfig    `json:"server"`
	Database   DatabaseConfig  `json:"database"`
	OpenAI     OpenAIConfig    `json:"openai"`
	Pipefy     PipefyConfig    `json:"pipefy"`
	Calendar   CalendarConfig  `json:"calendar"`
	Agent      AgentConfig     `json:"agent"`
	Session    SessionConfig   `json:"session"`
	SlotCache  SlotCacheConfig `json:"slot_cache"`
	Connectors ConnectorConfig `json:"connectors"`
	Notify     NotifyConfig    `json:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key,omitempty"` // empty disables auth
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// OpenAIConfig holds LLM provider settings.
type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// PipefyConfig holds CRM settings.
type PipefyConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	PipeID  string `json:"pipe_id"`
	PhaseID string `json:"phase_id,omitempty"` // initial funnel phase
}

// CalendarConfig holds scheduling provider settings (Cal.com style API).
type CalendarConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url,omitempty"`
	EventTypeID string `json:"event_type_id"`
	Timezone    string `json:"timezone,omitempty"`
}

// AgentConfig shapes the SDR persona embedded in the system prompt.
type AgentConfig struct {
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	CompanyName        string `json:"company_name"`
	Tone               string `json:"tone,omitempty"`
	MaxMessages        int    `json:"max_messages,omitempty"` // history cap per turn
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	TimeoutMinutes int `json:"timeout_minutes,omitempty"` // sliding expiry window
}

// SlotCacheConfig bounds the in-memory slot cache.
type SlotCacheConfig struct {
	MaxSessions   int    `json:"max_sessions,omitempty"`
	SweepSchedule string `json:"sweep_schedule,omitempty"` // cron spec, e.g. "@every 10m"
}

// ConnectorConfig holds settings for external chat channels.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// NotifyConfig holds sales-team notification settings.
type NotifyConfig struct {
	Slack *SlackConfig `json:"slack,omitempty"`
}

// SlackConfig holds Slack notifier settings.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with SDRBOT_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getenv("SDRBOT_HOST", "0.0.0.0"),
			Port: getenvInt("SDRBOT_PORT", 8080),
			Key:  os.Getenv("SDRBOT_API_KEY"),
		},
		Database: DatabaseConfig{
			Path: getenv("SDRBOT_DB_PATH", "data/sdrbot.db"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("SDRBOT_OPENAI_API_KEY"),
			Model:   os.Getenv("SDRBOT_OPENAI_MODEL"),
			BaseURL: os.Getenv("SDRBOT_OPENAI_BASE_URL"),
		},
		Pipefy: PipefyConfig{
			APIKey:  os.Getenv("SDRBOT_PIPEFY_API_KEY"),
			BaseURL: os.Getenv("SDRBOT_PIPEFY_BASE_URL"),
			PipeID:  os.Getenv("SDRBOT_PIPEFY_PIPE_ID"),
			PhaseID: os.Getenv("SDRBOT_PIPEFY_PHASE_ID"),
		},
		Calendar: CalendarConfig{
			APIKey:      os.Getenv("SDRBOT_CALENDAR_API_KEY"),
			BaseURL:     os.Getenv("SDRBOT_CALENDAR_BASE_URL"),
			EventTypeID: os.Getenv("SDRBOT_CALENDAR_EVENT_TYPE_ID"),
			Timezone:    os.Getenv("SDRBOT_CALENDAR_TIMEZONE"),
		},
		Agent: AgentConfig{
			ProductName:        getenv("SDRBOT_PRODUCT_NAME", "Sistema de Automação de Marketing"),
			ProductDescription: getenv("SDRBOT_PRODUCT_DESCRIPTION", "Plataforma completa de automação de marketing e vendas"),
			CompanyName:        getenv("SDRBOT_COMPANY_NAME", "TechSolutions"),
			MaxMessages:        getenvInt("SDRBOT_MAX_MESSAGES", 0),
		},
		Session: SessionConfig{
			TimeoutMinutes: getenvInt("SDRBOT_SESSION_TIMEOUT", 0),
		},
	}

	if token := os.Getenv("SDRBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("SDRBOT_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: SDRBOT_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	if token := os.Getenv("SDRBOT_SLACK_BOT_TOKEN"); token != "" {
		cfg.Notify.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("SDRBOT_SLACK_CHANNEL"),
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4-turbo-preview"
	}
	if c.Pipefy.BaseURL == "" {
		c.Pipefy.BaseURL = "https://api.pipefy.com/graphql"
	}
	if c.Calendar.BaseURL == "" {
		c.Calendar.BaseURL = "https://api.cal.com/v1"
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "America/Sao_Paulo"
	}
	if c.Agent.Tone == "" {
		c.Agent.Tone = "profissional, empático e consultivo"
	}
	if c.Agent.MaxMessages <= 0 {
		c.Agent.MaxMessages = 50
	}
	if c.Session.TimeoutMinutes <= 0 {
		c.Session.TimeoutMinutes = 30
	}
	if c.SlotCache.MaxSessions <= 0 {
		c.SlotCache.MaxSessions = 100
	}
	if c.SlotCache.SweepSchedule == "" {
		c.SlotCache.SweepSchedule = "@every 10m"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/sdrbot.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate checks for required fields, collecting every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.OpenAI.APIKey == "" {
		errs = append(errs, "openai.api_key is required")
	}
	if c.Pipefy.APIKey == "" {
		errs = append(errs, "pipefy.api_key is required")
	}
	if c.Pipefy.PipeID == "" {
		errs = append(errs, "pipefy.pipe_id is required")
	}
	if c.Calendar.APIKey == "" {
		errs = append(errs, "calendar.api_key is required")
	}
	if c.Calendar.EventTypeID == "" {
		errs = append(errs, "calendar.event_type_id is required")
	}
	if c.Agent.ProductName == "" {
		errs = append(errs, "agent.product_name is required")
	}
	if c.Agent.CompanyName == "" {
		errs = append(errs, "agent.company_name is required")
	}
	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}
	if c.Notify.Slack != nil {
		if c.Notify.Slack.BotToken == "" {
			errs = append(errs, "notify.slack.bot_token is required")
		}
		if c.Notify.Slack.Channel == "" {
			errs = append(errs, "notify.slack.channel is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BotConfig holds configuration for the relay process.
type BotConfig struct {
	Commander     string
	ModelProvider string

	TelegramAPIBase      string
	PollTimeout          int
	SleepSeconds         int
	DropPending          bool
	PendingWindowSeconds int64
	PendingMaxMessages   int

	OpenAIAPIKey      string
	OpenAIChatCompURL string
	OpenAIModel       string
	MaxOutputTokens   int
	Temperature       float32
	TopP              float32
	SystemPrompt      string
	CompletionTimeout time.Duration

	HistoryCapacity          int
	MaxConcurrentCompletions int
	SessionTTL               time.Duration
	EvictInterval            time.Duration

	DBPath string

	DummyProviderScript  string
	DummyCommanderScript string
	DummySendScript      string
}

// fileConfig is the optional YAML overlay (RELAY_CONFIG_FILE). Credentials
// stay in the environment; the file carries tuning knobs only. Pointer
// fields distinguish "absent" from zero values.
type fileConfig struct {
	Commander     *string `yaml:"commander"`
	ModelProvider *string `yaml:"model_provider"`

	Telegram struct {
		Timeout              *int  `yaml:"timeout"`
		SleepSeconds         *int  `yaml:"sleep_seconds"`
		DropPending          *bool `yaml:"drop_pending"`
		PendingWindowSeconds *int  `yaml:"pending_window_seconds"`
		PendingMaxMessages   *int  `yaml:"pending_max_messages"`
	} `yaml:"telegram"`

	OpenAI struct {
		URL             *string  `yaml:"url"`
		Model           *string  `yaml:"model"`
		MaxOutputTokens *int     `yaml:"max_output_tokens"`
		Temperature     *float32 `yaml:"temperature"`
		TopP            *float32 `yaml:"top_p"`
		TimeoutSeconds  *int     `yaml:"timeout_seconds"`
	} `yaml:"openai"`

	SystemPrompt             *string `yaml:"system_prompt"`
	HistoryCapacity          *int    `yaml:"history_capacity"`
	MaxConcurrentCompletions *int    `yaml:"max_concurrent_completions"`
	SessionTTLMinutes        *int    `yaml:"session_ttl_minutes"`
	EvictIntervalMinutes     *int    `yaml:"evict_interval_minutes"`
	DBPath                   *string `yaml:"db_path"`
}

// LoadBotConfig builds the process configuration. Precedence:
// environment > RELAY_CONFIG_FILE > built-in defaults.
func LoadBotConfig() (BotConfig, error) {
	fc, err := loadFileConfig(os.Getenv("RELAY_CONFIG_FILE"))
	if err != nil {
		return BotConfig{}, err
	}

	commander := envOrDefault("RELAY_COMMANDER", strDefault(fc.Commander, "telegram"))
	modelProvider := envOrDefault("RELAY_MODEL_PROVIDER", strDefault(fc.ModelProvider, "openai"))

	telegramToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if commander == "telegram" && telegramToken == "" {
		return BotConfig{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required in environment when RELAY_COMMANDER=telegram")
	}
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if modelProvider == "openai" && openaiKey == "" {
		return BotConfig{}, fmt.Errorf("OPENAI_API_KEY is required in environment when RELAY_MODEL_PROVIDER=openai")
	}

	cfg := BotConfig{
		Commander:     commander,
		ModelProvider: modelProvider,

		TelegramAPIBase:      fmt.Sprintf("https://api.telegram.org/bot%s", telegramToken),
		PollTimeout:          envIntOrDefault("TG_TIMEOUT", intDefault(fc.Telegram.Timeout, 30)),
		SleepSeconds:         envIntOrDefault("TG_SLEEP_SECONDS", intDefault(fc.Telegram.SleepSeconds, 1)),
		DropPending:          envBoolOrDefault("TG_DROP_PENDING", boolDefault(fc.Telegram.DropPending, true)),
		PendingWindowSeconds: int64(envIntOrDefault("TG_PENDING_WINDOW_SECONDS", intDefault(fc.Telegram.PendingWindowSeconds, 600))),
		PendingMaxMessages:   envIntOrDefault("TG_PENDING_MAX_MESSAGES", intDefault(fc.Telegram.PendingMaxMessages, 50)),

		OpenAIAPIKey:      openaiKey,
		OpenAIChatCompURL: envOrDefault("OPENAI_CHAT_COMPLETIONS_URL", strDefault(fc.OpenAI.URL, "https://api.openai.com/v1/chat/completions")),
		OpenAIModel:       envOrDefault("OPENAI_MODEL", strDefault(fc.OpenAI.Model, "gpt-4.1-nano")),
		MaxOutputTokens:   envIntOrDefault("RELAY_MAX_OUTPUT_TOKENS", intDefault(fc.OpenAI.MaxOutputTokens, 1000)),
		Temperature:       envFloatOrDefault("RELAY_TEMPERATURE", floatDefault(fc.OpenAI.Temperature, 0.7)),
		TopP:              envFloatOrDefault("RELAY_TOP_P", floatDefault(fc.OpenAI.TopP, 1.0)),
		SystemPrompt:      envOrDefault("RELAY_SYSTEM_PROMPT", strDefault(fc.SystemPrompt, "")),
		CompletionTimeout: time.Duration(envIntOrDefault("RELAY_COMPLETION_TIMEOUT_SECONDS", intDefault(fc.OpenAI.TimeoutSeconds, 120))) * time.Second,

		HistoryCapacity:          envIntOrDefault("RELAY_HISTORY_CAPACITY", intDefault(fc.HistoryCapacity, 10)),
		MaxConcurrentCompletions: envIntOrDefault("RELAY_MAX_CONCURRENT_COMPLETIONS", intDefault(fc.MaxConcurrentCompletions, 4)),
		SessionTTL:               time.Duration(envIntOrDefault("RELAY_SESSION_TTL_MINUTES", intDefault(fc.SessionTTLMinutes, 0))) * time.Minute,
		EvictInterval:            time.Duration(envIntOrDefault("RELAY_EVICT_INTERVAL_MINUTES", intDefault(fc.EvictIntervalMinutes, 5))) * time.Minute,

		DBPath: envOrDefault("RELAY_DB_PATH", strDefault(fc.DBPath, "/state/relaybot.db")),

		DummyProviderScript:  envOrDefault("RELAY_DUMMY_PROVIDER_SCRIPT", "ok"),
		DummyCommanderScript: envOrDefault("RELAY_DUMMY_COMMANDER_SCRIPT", "ok"),
		DummySendScript:      envOrDefault("RELAY_DUMMY_SEND_SCRIPT", "ok"),
	}

	if cfg.HistoryCapacity <= 0 {
		return BotConfig{}, fmt.Errorf("RELAY_HISTORY_CAPACITY must be positive")
	}
	if cfg.MaxConcurrentCompletions <= 0 {
		return BotConfig{}, fmt.Errorf("RELAY_MAX_CONCURRENT_COMPLETIONS must be positive")
	}
	if cfg.MaxOutputTokens <= 0 {
		return BotConfig{}, fmt.Errorf("RELAY_MAX_OUTPUT_TOKENS must be positive")
	}
	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if strings.TrimSpace(path) == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("failed to read RELAY_CONFIG_FILE %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse RELAY_CONFIG_FILE %s: %w", path, err)
	}
	return fc, nil
}

func strDefault(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}

func intDefault(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func boolDefault(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func floatDefault(v *float32, fallback float32) float32 {
	if v != nil {
		return *v
	}
	return fallback
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func envFloatOrDefault(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupBotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("RELAY_COMMANDER", "telegram")
	t.Setenv("RELAY_MODEL_PROVIDER", "openai")
	t.Setenv("RELAY_CONFIG_FILE", "")
}

func TestLoadBotConfig_Defaults(t *testing.T) {
	setupBotEnv(t)
	cfg, err := LoadBotConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.OpenAIModel != "gpt-4.1-nano" {
		t.Errorf("unexpected model: %s", cfg.OpenAIModel)
	}
	if cfg.HistoryCapacity != 10 {
		t.Errorf("expected history capacity 10, got %d", cfg.HistoryCapacity)
	}
	if cfg.MaxOutputTokens != 1000 {
		t.Errorf("expected max output tokens 1000, got %d", cfg.MaxOutputTokens)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.Temperature)
	}
	if cfg.TopP != 1.0 {
		t.Errorf("expected top_p 1.0, got %v", cfg.TopP)
	}
	if cfg.SessionTTL != 0 {
		t.Errorf("expected eviction disabled by default, got %s", cfg.SessionTTL)
	}
	if !strings.HasSuffix(cfg.TelegramAPIBase, "bottest-token") {
		t.Errorf("unexpected api base: %s", cfg.TelegramAPIBase)
	}
}

func TestLoadBotConfig_RequiresTelegramToken(t *testing.T) {
	setupBotEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, err := LoadBotConfig()
	if err == nil {
		t.Fatal("expected missing token error")
	}
	if !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoadBotConfig_RequiresOpenAIKey(t *testing.T) {
	setupBotEnv(t)
	t.Setenv("OPENAI_API_KEY", "")
	_, err := LoadBotConfig()
	if err == nil {
		t.Fatal("expected missing key error")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoadBotConfig_DummyNeedsNoCredentials(t *testing.T) {
	setupBotEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RELAY_COMMANDER", "dummy")
	t.Setenv("RELAY_MODEL_PROVIDER", "dummy")
	cfg, err := LoadBotConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Commander != "dummy" || cfg.ModelProvider != "dummy" {
		t.Fatalf("unexpected commander/provider: %s/%s", cfg.Commander, cfg.ModelProvider)
	}
}

func TestLoadBotConfig_FileOverlayAndEnvPrecedence(t *testing.T) {
	setupBotEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	content := `
model_provider: openai
openai:
  model: gpt-4o-mini
  temperature: 0.3
history_capacity: 6
session_ttl_minutes: 30
telegram:
  drop_pending: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_CONFIG_FILE", path)
	t.Setenv("OPENAI_MODEL", "gpt-4.1") // env wins over file

	cfg, err := LoadBotConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.OpenAIModel != "gpt-4.1" {
		t.Errorf("expected env override gpt-4.1, got %s", cfg.OpenAIModel)
	}
	if cfg.Temperature != 0.3 {
		t.Errorf("expected file temperature 0.3, got %v", cfg.Temperature)
	}
	if cfg.HistoryCapacity != 6 {
		t.Errorf("expected file history capacity 6, got %d", cfg.HistoryCapacity)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected file session ttl 30m, got %s", cfg.SessionTTL)
	}
	if cfg.DropPending {
		t.Error("expected file drop_pending=false to survive")
	}
}

func TestLoadBotConfig_RejectsBadFile(t *testing.T) {
	setupBotEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	if err := os.WriteFile(path, []byte("::not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_CONFIG_FILE", path)
	_, err := LoadBotConfig()
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadBotConfig_ValidatesHistoryCapacity(t *testing.T) {
	setupBotEnv(t)
	t.Setenv("RELAY_HISTORY_CAPACITY", "-1")
	_, err := LoadBotConfig()
	if err == nil {
		t.Fatal("expected invalid capacity error")
	}
	if !strings.Contains(err.Error(), "RELAY_HISTORY_CAPACITY") {
		t.Fatalf("unexpected err: %v", err)
	}
}

package internal

import (
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/starford/tgvault/internal/fetch"
	"github.com/starford/tgvault/internal/telegram"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_TokenRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("missing bot token should fail")
	}
	if !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_ValidateStoreSkipsTelegram(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.ValidateStore(); err != nil {
		t.Fatalf("store validation should not need a bot token: %v", err)
	}
}

func TestConfig_DefaultsFilled(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Notes.Path != DefaultNotesPath {
		t.Errorf("notes path = %q", cfg.Notes.Path)
	}
	if cfg.Index.Path != DefaultIndexPath {
		t.Errorf("index path = %q", cfg.Index.Path)
	}
	if cfg.Telegram.FileServer != telegram.DefaultFileServer {
		t.Errorf("file server = %q", cfg.Telegram.FileServer)
	}
	if cfg.Telegram.DownloadTimeout != fetch.DefaultTimeout {
		t.Errorf("download timeout = %v", cfg.Telegram.DownloadTimeout)
	}
	if cfg.Auth.Mode != AuthModeDisabled {
		t.Errorf("auth mode = %q", cfg.Auth.Mode)
	}
}

func TestConfig_HTTPPortOnlyCheckedWhenEnabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Telegram.Token = "t"
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled http should ignore port: %v", err)
	}
	cfg.App.HTTP.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled http with port 0 should fail")
	}
	cfg.App.HTTP.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled http with port 70000 should fail")
	}
}

func TestTelegramConfig_AllowedChats(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{in: "", want: nil},
		{in: " , ", want: nil},
		{in: "42", want: []int64{42}},
		{in: "-1001234, 7 ,", want: []int64{-1001234, 7}},
		{in: "12,abc", wantErr: true},
	}
	for _, tt := range tests {
		c := TelegramConfig{AllowedChatIDs: tt.in}
		got, err := c.AllowedChats()
		if tt.wantErr {
			if err == nil {
				t.Errorf("AllowedChats(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("AllowedChats(%q): %v", tt.in, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("AllowedChats(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfig_InvalidChatIDsFailValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Telegram.Token = "t"
	cfg.Telegram.AllowedChatIDs = "1,two"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unparseable chat ids should fail")
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"TELEGRAM_BOT_TOKEN":     "123:abc",
		"NOTES_DIR":              "/data/notes",
		"GDRIVE_FOLDER_ID":       "folder",
		"GDRIVE_CREDENTIALS_B64": "e30=",
		"ALLOWED_CHAT_IDS":       "1,2",
		"LOG_LEVEL":              "debug",
		"HTTP_PORT":              "9090",
		"HTTP_ENABLED":           "true",
		"INDEX_PATH":             "   ",
	}
	cfg := NewDefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Notes.Path != "/data/notes" {
		t.Errorf("token/notes not applied: %+v", cfg)
	}
	if !cfg.Drive.Mirror().Enabled() {
		t.Error("drive mirror should be enabled")
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if !cfg.App.HTTP.Enabled || cfg.App.HTTP.Port != 9090 {
		t.Errorf("http = %+v", cfg.App.HTTP)
	}
	if cfg.Index.Path != DefaultIndexPath {
		t.Errorf("blank INDEX_PATH should keep default, got %q", cfg.Index.Path)
	}
}

func TestConfig_ApplyEnvRejectsBadValues(t *testing.T) {
	for _, key := range []string{"LOG_LEVEL", "HTTP_PORT", "HTTP_ENABLED"} {
		cfg := NewDefaultConfig()
		err := cfg.ApplyEnv(func(k string) (string, bool) {
			if k == key {
				return "bogus", true
			}
			return "", false
		})
		if err == nil {
			t.Errorf("%s=bogus should fail", key)
		}
	}
}

package internal

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tgvault/internal/fetch"
	"github.com/starford/tgvault/internal/mirror"
	"github.com/starford/tgvault/internal/telegram"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Defaults for optional settings.
const (
	DefaultNotesPath = "./notes"
	DefaultIndexPath = "./tgvault.db"
	DefaultHTTPPort  = 8080
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Telegram TelegramConfig    `yaml:"telegram"`
	Notes    NotesConfig       `yaml:"notes"`
	Drive    DriveConfig       `yaml:"drive"`
	Index    IndexConfig       `yaml:"index"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates everything the bot needs.
func (c *Config) Validate() error {
	if err := c.Telegram.Validate(); err != nil {
		return err
	}
	return c.ValidateStore()
}

// ValidateStore validates the settings shared by the bot and the MCP server,
// which does not talk to Telegram.
func (c *Config) ValidateStore() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplyEnv overlays environment variables on top of the file configuration.
// Unset or empty variables leave the current value alone.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN":     &c.Telegram.Token,
		"TELEGRAM_FILE_SERVER":   &c.Telegram.FileServer,
		"ALLOWED_CHAT_IDS":       &c.Telegram.AllowedChatIDs,
		"NOTES_DIR":              &c.Notes.Path,
		"GDRIVE_FOLDER_ID":       &c.Drive.FolderID,
		"GDRIVE_CREDENTIALS_B64": &c.Drive.CredentialsB64,
		"INDEX_PATH":             &c.Index.Path,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get("LOG_LEVEL"); ok {
		if err := c.App.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if v, ok := get("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.App.HTTP.Port = port
	}
	if v, ok := get("HTTP_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HTTP_ENABLED: %w", err)
		}
		c.App.HTTP.Enabled = enabled
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the optional read API server configuration.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
	)
}

// TelegramConfig holds bot settings.
type TelegramConfig struct {
	Token           string        `yaml:"token"`
	AllowedChatIDs  string        `yaml:"allowed_chat_ids"` // comma-separated
	APIEndpoint     string        `yaml:"api_endpoint"`
	FileServer      string        `yaml:"file_server"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// Validate validates the Telegram configuration.
func (c *TelegramConfig) Validate() error {
	if c.FileServer == "" {
		c.FileServer = telegram.DefaultFileServer
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = fetch.DefaultTimeout
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required.Error("bot token is required (TELEGRAM_BOT_TOKEN)")),
		validation.Field(&c.AllowedChatIDs, validation.By(func(any) error {
			_, err := c.AllowedChats()
			return err
		})),
		validation.Field(&c.DownloadTimeout, validation.Min(time.Second)),
	)
}

// AllowedChats parses AllowedChatIDs. An empty list means every chat is allowed.
func (c *TelegramConfig) AllowedChats() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(c.AllowedChatIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NotesConfig holds the path to the notes root.
type NotesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = DefaultNotesPath
	}
	return nil
}

// DriveConfig holds the optional remote mirror settings. Leaving either
// value empty disables mirroring.
type DriveConfig struct {
	FolderID       string `yaml:"folder_id"`
	CredentialsB64 string `yaml:"credentials_b64"`
}

// Mirror converts the settings for the mirror package.
func (c DriveConfig) Mirror() mirror.Config {
	return mirror.Config{FolderID: c.FolderID, CredentialsB64: c.CredentialsB64}
}

// IndexConfig holds SQLite catalogue configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = DefaultIndexPath
	}
	return nil
}

// AuthConfig holds read API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: DefaultHTTPPort,
			},
		},
		Telegram: TelegramConfig{
			FileServer:      telegram.DefaultFileServer,
			DownloadTimeout: fetch.DefaultTimeout,
		},
		Notes: NotesConfig{
			Path: DefaultNotesPath,
		},
		Index: IndexConfig{
			Path: DefaultIndexPath,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

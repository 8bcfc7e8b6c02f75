package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerSettings
	Game    GameSettings
	Journal JournalSettings
	Auth    AuthSettings
	Notify  NotifySettings
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings configures the engine
type GameSettings struct {
	Pairs        int   `hcl:"pairs,optional"`
	ResetOnStart bool  `hcl:"reset_on_start,optional"`
	ShuffleSeed  int64 `hcl:"shuffle_seed,optional"`
}

// JournalSettings configures signal persistence. An empty path keeps state in
// memory only.
type JournalSettings struct {
	Path     string `hcl:"path,optional"`
	Snapshot string `hcl:"snapshot,optional"`
}

// AuthSettings selects how caller identity is resolved
type AuthSettings struct {
	Mode   string `hcl:"mode,optional"`
	Secret string `hcl:"secret,optional"`
	URL    string `hcl:"url,optional"`
}

// NotifySettings configures external signal fan-out
type NotifySettings struct {
	NATSURL string `hcl:"nats_url,optional"`
	Subject string `hcl:"subject,optional"`
}

// fileConfig mirrors Config with optional blocks
type fileConfig struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Game    *GameSettings    `hcl:"game,block"`
	Journal *JournalSettings `hcl:"journal,block"`
	Auth    *AuthSettings    `hcl:"auth,block"`
	Notify  *NotifySettings  `hcl:"notify,block"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			Pairs: 4,
		},
		Auth: AuthSettings{
			Mode: "none",
		},
		Notify: NotifySettings{
			Subject: "memory",
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(filename, src)
}

// ParseConfig decodes HCL source and fills in defaults for missing values.
func ParseConfig(filename string, src []byte) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config := DefaultConfig()
	if fc.Server != nil {
		config.Server = *fc.Server
	}
	if fc.Game != nil {
		config.Game = *fc.Game
	}
	if fc.Journal != nil {
		config.Journal = *fc.Journal
	}
	if fc.Auth != nil {
		config.Auth = *fc.Auth
	}
	if fc.Notify != nil {
		config.Notify = *fc.Notify
	}
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server.Address == "" {
		c.Server.Address = defaults.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaults.Server.LogLevel
	}
	if c.Game.Pairs == 0 {
		c.Game.Pairs = defaults.Game.Pairs
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = defaults.Auth.Mode
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = defaults.Notify.Subject
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if c.Game.Pairs < 1 {
		return fmt.Errorf("game: pairs must be positive, got %d", c.Game.Pairs)
	}

	switch c.Auth.Mode {
	case "none":
	case "jwt":
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth: jwt mode requires a secret")
		}
	case "http":
		if c.Auth.URL == "" {
			return fmt.Errorf("auth: http mode requires a url")
		}
	default:
		return fmt.Errorf("auth: invalid mode %s", c.Auth.Mode)
	}

	if c.Journal.Snapshot != "" && c.Journal.Path == "" {
		return fmt.Errorf("journal: snapshot requires a journal path")
	}

	return nil
}

// ListenAddress returns the full server address
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

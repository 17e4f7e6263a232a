// Package config loads the whiteboard configuration from TOML, applies
// environment overrides, validates it and reloads it when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	LLM     LLMConfig     `toml:"llm"`
	Breaker BreakerConfig `toml:"breaker"`
	History HistoryConfig `toml:"history"`
	Sync    SyncConfig    `toml:"sync"`
	HTTP    HTTPConfig    `toml:"http"`
	Log     LogConfig     `toml:"log"`
}

// LLMConfig points at an Anthropic-compatible messages endpoint.
type LLMConfig struct {
	BaseURL       string        `toml:"base_url" validate:"required,url"`
	APIKey        string        `toml:"api_key"`
	Model         string        `toml:"model" validate:"required"`
	MaxTokens     int           `toml:"max_tokens" validate:"min=1,max=64000"`
	Timeout       time.Duration `toml:"timeout"`
	ContextBudget int           `toml:"context_budget" validate:"min=100"`
}

// BreakerConfig tunes the circuit breaker in front of the LLM.
type BreakerConfig struct {
	MaxRequests  uint32        `toml:"max_requests" validate:"min=1"`
	Interval     time.Duration `toml:"interval"`
	Timeout      time.Duration `toml:"timeout"`
	FailureRatio float64       `toml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32        `toml:"min_requests" validate:"min=1"`
}

type HistoryConfig struct {
	DBPath         string `toml:"db_path" validate:"required"`
	KeepPerSession int    `toml:"keep_per_session" validate:"min=1"`
	PruneSchedule  string `toml:"prune_schedule" validate:"required"`
}

// SyncConfig enables the NATS sync bus when NATSURL is set.
type SyncConfig struct {
	NATSURL    string `toml:"nats_url" validate:"omitempty,url"`
	DocumentID string `toml:"document_id" validate:"required,max=64,excludesall= .*>"`
}

type HTTPConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type LogConfig struct {
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	Production bool   `toml:"production"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:       "https://api.minimax.io/anthropic",
			Model:         "MiniMax-M2.5",
			MaxTokens:     2000,
			Timeout:       60 * time.Second,
			ContextBudget: 1000,
		},
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.6,
			MinRequests:  3,
		},
		History: HistoryConfig{
			DBPath:         filepath.Join(dataDir(), "history.db"),
			KeepPerSession: 200,
			PruneSchedule:  "0 * * * *",
		},
		Sync: SyncConfig{
			DocumentID: "default",
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:3001",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/whiteboard/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "whiteboard", "config.toml")
}

func dataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "whiteboard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "whiteboard")
}

// ApplyEnvOverrides lets the environment win over the file. Secrets are
// usually supplied this way.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WHITEBOARD_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	} else if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if v := os.Getenv("WHITEBOARD_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("WHITEBOARD_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("WHITEBOARD_NATS_URL"); v != "" {
		c.Sync.NATSURL = v
	}
	if v := os.Getenv("WHITEBOARD_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("WHITEBOARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

var validate = newValidator()

// newValidator reports fields by their TOML key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints plus the ones struct tags cannot express.
func (c *Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, e := range verrs {
			problems = append(problems, formatFieldError(e))
		}
	}
	if c.LLM.Timeout < 0 {
		problems = append(problems, "llm.timeout must not be negative")
	}
	if c.Breaker.Interval < 0 {
		problems = append(problems, "breaker.interval must not be negative")
	}
	if c.Breaker.Timeout <= 0 {
		problems = append(problems, "breaker.timeout must be positive")
	}
	if c.History.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.History.PruneSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("history.prune_schedule: %v", err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// formatFieldError renders one validation failure with the TOML key path.
func formatFieldError(e validator.FieldError) string {
	field := tomlPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain spaces, '.', '*' or '>'", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// tomlPath turns "Config.llm.base_url" into "llm.base_url".
func tomlPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

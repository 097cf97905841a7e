// Package config provides unified configuration for the parley
// orchestrator.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (PARLEY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the parley orchestrator.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Engine        EngineConfig        `yaml:"engine"`
	Policy        PolicyConfig        `yaml:"policy"`
	Intents       []IntentConfig      `yaml:"intents"`
	Backend       BackendConfig       `yaml:"backend"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// EngineConfig holds turn orchestration settings.
type EngineConfig struct {
	TurnTimeout        time.Duration `yaml:"turn_timeout"`         // default: 10s
	HistorySize        int           `yaml:"history_size"`         // turns kept per session, default: 20
	MinConfidence      float64       `yaml:"min_confidence"`       // intent threshold, default: 0.3
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"` // default: 30m, 0 disables eviction
}

// PolicyConfig holds validation chain settings.
type PolicyConfig struct {
	MaxInputLength    int             `yaml:"max_input_length"`    // default: 1000
	MaxResponseLength int             `yaml:"max_response_length"` // default: 500
	BannedWords       []string        `yaml:"banned_words"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds turn submissions in a sliding window. The
// window is shared across all sessions; it is a process-wide input
// throttle, not a per-session quota.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"` // default: false
	Limit   int           `yaml:"limit"`   // default: 30
	Window  time.Duration `yaml:"window"`  // default: 1m
}

// IntentConfig describes one intent's match rules. Patterns are
// case-insensitive regular expressions; named capture groups become
// intent entities.
type IntentConfig struct {
	Name       string   `yaml:"name"`
	Substrings []string `yaml:"substrings"`
	Patterns   []string `yaml:"patterns"`
	Keywords   []string `yaml:"keywords"`
}

// BackendConfig holds generation backend settings. When disabled, all
// responses come from the template tables.
type BackendConfig struct {
	Enabled    bool          `yaml:"enabled"`      // default: false
	URL        string        `yaml:"url"`          // required when enabled
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"` // default: 30s
}

// StorageConfig holds durable store settings.
type StorageConfig struct {
	Type           string         `yaml:"type"`             // "memory" or "postgres", default: "memory"
	MaxTurns       int            `yaml:"max_turns"`        // for memory store, default: 10000
	RetentionDays  int            `yaml:"retention_days"`   // 0 disables purging
	RetryAttempts  int            `yaml:"retry_attempts"`   // recorder retry budget, default: 3
	RetryBaseDelay time.Duration  `yaml:"retry_base_delay"` // default: 50ms
	Postgres       PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`          // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"`         // default: 25
	MinConns        int32         `yaml:"min_conns"`         // default: 2
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // default: 30m
	MigrateOnStart  bool          `yaml:"migrate_on_start"`  // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Addr    string `yaml:"addr"`    // default: ":9090"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in, including
// the built-in intent rules.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			TurnTimeout:        10 * time.Second,
			HistorySize:        20,
			MinConfidence:      0.3,
			SessionIdleTimeout: 30 * time.Minute,
		},
		Policy: PolicyConfig{
			MaxInputLength:    1000,
			MaxResponseLength: 500,
			RateLimit: RateLimitConfig{
				Enabled: false,
				Limit:   30,
				Window:  time.Minute,
			},
		},
		Intents: DefaultIntents(),
		Backend: BackendConfig{
			Enabled: false,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type:           "memory",
			MaxTurns:       10000,
			RetryAttempts:  3,
			RetryBaseDelay: 50 * time.Millisecond,
			Postgres: PostgresConfig{
				MaxConns:        25,
				MinConns:        2,
				MaxConnLifetime: 30 * time.Minute,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Addr:    ":9090",
				Path:    "/metrics",
			},
		},
	}
}

// DefaultIntents returns the built-in intent rule set, matching the
// built-in response templates.
func DefaultIntents() []IntentConfig {
	return []IntentConfig{
		{
			Name:       "greeting",
			Patterns:   []string{`^(hello|hi|hey)\b.*`},
			Substrings: []string{"good morning", "good afternoon", "good evening"},
		},
		{
			Name:     "farewell",
			Patterns: []string{`^(bye|goodbye|see you|good night)\b.*`},
		},
		{
			Name:       "help.request",
			Substrings: []string{"help", "what can you do"},
		},
		{
			Name:       "smalltalk.how_are_you",
			Substrings: []string{"how are you", "how's it going"},
		},
		{
			Name:       "time.query",
			Substrings: []string{"what time", "current time"},
		},
		{
			Name:       "date.query",
			Substrings: []string{"what day", "what date", "today's date"},
		},
		{
			Name:     "caregiver.notify",
			Patterns: []string{`(?:call|notify|contact)\s+(?:my\s+|the\s+)?(?P<role>nurse|doctor|caregiver)`},
		},
	}
}

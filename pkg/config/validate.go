package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Engine.TurnTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.turn_timeout must be > 0, got %s", c.Engine.TurnTimeout))
	}
	if c.Engine.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("engine.history_size must be > 0, got %d", c.Engine.HistorySize))
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("engine.min_confidence must be in [0, 1], got %f", c.Engine.MinConfidence))
	}

	if c.Policy.MaxInputLength <= 0 {
		errs = append(errs, fmt.Errorf("policy.max_input_length must be > 0, got %d", c.Policy.MaxInputLength))
	}
	if c.Policy.MaxResponseLength <= 0 {
		errs = append(errs, fmt.Errorf("policy.max_response_length must be > 0, got %d", c.Policy.MaxResponseLength))
	}
	if c.Policy.RateLimit.Enabled {
		if c.Policy.RateLimit.Limit <= 0 {
			errs = append(errs, fmt.Errorf("policy.rate_limit.limit must be > 0, got %d", c.Policy.RateLimit.Limit))
		}
		if c.Policy.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("policy.rate_limit.window must be > 0, got %s", c.Policy.RateLimit.Window))
		}
	}

	seen := make(map[string]bool, len(c.Intents))
	for i, intent := range c.Intents {
		if intent.Name == "" {
			errs = append(errs, fmt.Errorf("intents[%d].name is required", i))
			continue
		}
		if seen[intent.Name] {
			errs = append(errs, fmt.Errorf("intents[%d]: duplicate intent name %q", i, intent.Name))
		}
		seen[intent.Name] = true
		if len(intent.Substrings) == 0 && len(intent.Patterns) == 0 && len(intent.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("intents[%d] (%s): at least one rule is required", i, intent.Name))
		}
		for _, pattern := range intent.Patterns {
			if _, err := regexp.Compile("(?i)" + pattern); err != nil {
				errs = append(errs, fmt.Errorf("intents[%d] (%s): invalid pattern %q: %v", i, intent.Name, pattern, err))
			}
		}
	}

	if c.Backend.Enabled && c.Backend.URL == "" {
		errs = append(errs, fmt.Errorf("backend.url is required when backend.enabled is true"))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}
	if c.Storage.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("storage.retry_attempts must be > 0, got %d", c.Storage.RetryAttempts))
	}

	return errors.Join(errs...)
}

// Command parley runs the conversation orchestrator with an interactive
// console on stdin.
//
// Configuration is loaded from a YAML file (see -config, PARLEY_CONFIG,
// ./config.yaml, /etc/parley/config.yaml) with PARLEY_* environment
// overrides.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/bus"
	"github.com/parley-dev/parley/pkg/config"
	"github.com/parley-dev/parley/pkg/engine"
	"github.com/parley-dev/parley/pkg/intent"
	"github.com/parley-dev/parley/pkg/observability"
	"github.com/parley-dev/parley/pkg/policy"
	"github.com/parley-dev/parley/pkg/respond"
	"github.com/parley-dev/parley/pkg/session"
	"github.com/parley-dev/parley/pkg/storage"
	"github.com/parley-dev/parley/pkg/storage/memory"
	"github.com/parley-dev/parley/pkg/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("parley failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable store.
	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	// Event bus with the recorder subscribed to every persistent topic.
	b := bus.New()
	defer b.Close()

	if err := b.RegisterPublisher("system", []string{
		api.TopicSystemStart,
		api.TopicSystemShutdown,
	}); err != nil {
		return err
	}

	recorder := storage.NewRecorder(store, cfg.Storage.RetryAttempts, cfg.Storage.RetryBaseDelay)
	for _, topic := range []string{api.TopicSystemStart, api.TopicSystemShutdown, api.TopicSessionEnded} {
		if _, err := b.Subscribe(topic, storage.SubscriberName, recorder.HandleSystemEvent); err != nil {
			return err
		}
	}
	if _, err := b.Subscribe(api.TopicConversationTurn, storage.SubscriberName, recorder.HandleTurnEvent); err != nil {
		return err
	}

	// Pipeline components.
	policies := buildPolicies(cfg.Policy)

	detector, err := intent.FromSpecs(cfg.Engine.MinConfidence, intentSpecs(cfg.Intents))
	if err != nil {
		return fmt.Errorf("building intent detector: %w", err)
	}

	sessions := session.NewStore(cfg.Engine.HistorySize)
	responder := buildResponder(cfg.Backend)

	eng, err := engine.New(b, policies, detector, sessions, responder, engine.Config{
		TurnTimeout: cfg.Engine.TurnTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// Metrics endpoint.
	if cfg.Observability.Metrics.Enabled {
		metrics := observability.NewMetricsServer(cfg.Observability.Metrics.Addr, cfg.Observability.Metrics.Path)
		go func() {
			if err := metrics.Start(); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx)
		}()
	}

	// Background maintenance.
	if cfg.Storage.RetentionDays > 0 {
		go purgeLoop(ctx, store, cfg.Storage.RetentionDays)
	}
	if cfg.Engine.SessionIdleTimeout > 0 {
		go evictLoop(ctx, sessions, cfg.Engine.SessionIdleTimeout)
	}

	// Announce the lifecycle on the bus; the recorder persists it.
	if _, err := b.Publish(api.Event{
		Topic:   api.TopicSystemStart,
		Payload: map[string]any{"storage": cfg.Storage.Type},
		Source:  "system",
	}); err != nil {
		return fmt.Errorf("publishing start event: %w", err)
	}
	defer b.Publish(api.Event{
		Topic:   api.TopicSystemShutdown,
		Payload: map[string]any{"reason": "signal"},
		Source:  "system",
	})

	slog.Info("parley started", "storage", cfg.Storage.Type, "intents", len(cfg.Intents))

	return console(ctx, eng)
}

// console runs the interactive read/submit loop until EOF or signal.
func console(ctx context.Context, eng *engine.Engine) error {
	sessionID := api.NewSessionID()
	fmt.Printf("session %s (/end starts a new session, /quit exits)\n", sessionID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			eng.EndSession(sessionID)
			return nil
		case line, ok = <-lines:
			if !ok {
				eng.EndSession(sessionID)
				return nil
			}
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/quit":
			eng.EndSession(sessionID)
			return nil
		case line == "/end":
			eng.EndSession(sessionID)
			sessionID = api.NewSessionID()
			fmt.Printf("session %s\n", sessionID)
			continue
		}

		outcome, err := eng.SubmitTurn(ctx, sessionID, line)
		if err != nil {
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Type == api.ErrorTypePolicyViolation {
				fmt.Println(outcome.ResponseText)
				continue
			}
			slog.Error("turn failed", "error", err)
			fmt.Println(outcome.ResponseText)
			continue
		}
		fmt.Println(outcome.ResponseText)
	}
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.TurnStore, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(cfg.MaxTurns), nil
	}
}

func buildPolicies(cfg config.PolicyConfig) *policy.Engine {
	p := policy.NewEngine()
	if len(cfg.BannedWords) > 0 {
		p.AddValidator(policy.NewContentFilter(cfg.BannedWords))
	}
	p.AddValidator(policy.NewInputSanitizer(cfg.MaxInputLength))
	p.AddValidator(policy.NewResponseLength(cfg.MaxResponseLength))
	if cfg.RateLimit.Enabled {
		p.AddValidator(policy.NewRateLimit(cfg.RateLimit.Limit, cfg.RateLimit.Window))
	}
	return p
}

func buildResponder(cfg config.BackendConfig) *respond.Responder {
	responder := respond.Default(nil)
	if cfg.Enabled {
		backend := respond.NewHTTPBackend(cfg.URL, cfg.APIKey, cfg.Model, cfg.Timeout)
		// Route unmatched inputs to the generation backend instead of
		// the canned no-match templates.
		responder.Register(api.FallbackIntentName, respond.NewBackendStrategy(backend))
	}
	return responder
}

func intentSpecs(intents []config.IntentConfig) []intent.Spec {
	specs := make([]intent.Spec, 0, len(intents))
	for _, ic := range intents {
		specs = append(specs, intent.Spec{
			Name:       ic.Name,
			Substrings: ic.Substrings,
			Patterns:   ic.Patterns,
			Keywords:   ic.Keywords,
		})
	}
	return specs
}

func purgeLoop(ctx context.Context, store storage.TurnStore, retentionDays int) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			removed, err := store.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				slog.Error("retention purge failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("retention purge complete", "removed", removed)
			}
		}
	}
}

func evictLoop(ctx context.Context, sessions *session.Store, idleTimeout time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := sessions.EvictIdle(time.Now().Add(-idleTimeout))
			for _, id := range evicted {
				slog.Info("idle session evicted", "session_id", id)
			}
		}
	}
}

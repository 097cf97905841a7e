// Package respond maps a detected intent plus session context to response
// text. Generation is a pure function of its inputs: strategies never
// touch the bus or mutate the session; the orchestrator records the
// chosen variant afterwards.
package respond

import (
	"context"
	"fmt"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/session"
)

// Result is the outcome of one generation: the response text and the
// template variant that produced it. Variant is -1 when the strategy has
// no variant notion (e.g. a backend-generated response).
type Result struct {
	Text    string
	Intent  string
	Variant int
}

// Strategy produces a response for one intent. Implementations must be
// side-effect free; blocking implementations honor ctx.
type Strategy interface {
	Generate(ctx context.Context, intent api.Intent, sctx session.Context) (Result, error)
}

// Responder selects a response strategy keyed by intent name, with a
// fallback strategy for unknown and no-match intents.
type Responder struct {
	strategies map[string]Strategy
	fallback   Strategy
}

// New creates a responder. The fallback strategy must not be nil; it
// handles the fallback intent and any intent without a registered
// strategy.
func New(fallback Strategy) (*Responder, error) {
	if fallback == nil {
		return nil, fmt.Errorf("respond: fallback strategy must not be nil")
	}
	return &Responder{
		strategies: make(map[string]Strategy),
		fallback:   fallback,
	}, nil
}

// Register binds a strategy to an intent name, replacing any previous
// binding.
func (r *Responder) Register(intentName string, s Strategy) {
	r.strategies[intentName] = s
}

// Generate produces the response for the intent using the registered
// strategy, or the fallback strategy when none is registered.
func (r *Responder) Generate(ctx context.Context, intent api.Intent, sctx session.Context) (Result, error) {
	s, ok := r.strategies[intent.Name]
	if !ok {
		s = r.fallback
	}
	return s.Generate(ctx, intent, sctx)
}

// Default builds a responder with the built-in template set: greetings,
// farewells, help, small talk, time and date queries, and a default
// no-match strategy. The clock parameterizes time-dependent templates so
// tests stay deterministic; pass nil for time.Now.
func Default(clock func() time.Time) *Responder {
	if clock == nil {
		clock = time.Now
	}

	fallback := NewTemplateStrategy(api.FallbackIntentName, defaultVariants, clock)
	r, _ := New(fallback)

	for name, variants := range builtinVariants {
		r.Register(name, NewTemplateStrategy(name, variants, clock))
	}
	return r
}

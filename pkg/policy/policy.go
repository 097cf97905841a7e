// Package policy implements the ordered validator chain evaluated against
// user input and generated output. All validators run on every evaluation;
// violations are aggregated so callers always see the complete set.
package policy

import (
	"log/slog"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/observability"
)

// Direction tells a validator whether it is looking at user input or at
// a generated response.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Validator is a single guardrail. Validate returns zero or more
// violations as rule-name → detail; it returns nil (or an empty map) when
// the text passes or the direction does not apply.
//
// Validators must be deterministic: the same text and direction always
// produce the same violations. The only sanctioned exception is an
// explicitly time-dependent rate-limit validator.
type Validator interface {
	Name() string
	Validate(text string, direction Direction) map[string]string
}

// Engine evaluates a registered chain of validators in registration order.
type Engine struct {
	validators []Validator
}

// NewEngine creates an engine with no validators; every evaluation passes
// until validators are added.
func NewEngine() *Engine {
	return &Engine{}
}

// AddValidator appends a validator to the chain. Registration order is
// evaluation order.
func (e *Engine) AddValidator(v Validator) {
	e.validators = append(e.validators, v)
	slog.Debug("validator registered", "validator", v.Name())
}

// Evaluate runs the full chain against the text. It never short-circuits:
// every validator runs, and all violations are merged into one result.
func (e *Engine) Evaluate(text string, direction Direction) api.PolicyResult {
	violations := make(map[string]string)
	for _, v := range e.validators {
		for rule, detail := range v.Validate(text, direction) {
			violations[rule] = detail
			observability.PolicyViolationsTotal.WithLabelValues(rule, string(direction)).Inc()
		}
	}

	result := api.PolicyResult{Passed: len(violations) == 0}
	if !result.Passed {
		result.Violations = violations
		slog.Debug("policy evaluation failed",
			"direction", direction,
			"violations", len(violations))
	}
	return result
}

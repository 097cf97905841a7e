package respond

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/session"
)

// builtinVariants is the default template table. Placeholders in braces
// are filled from intent entities, session slots, and the clock-derived
// values in resolvePlaceholder.
var builtinVariants = map[string][]string{
	"greeting": {
		"Good {time_of_day}! How can I help you today?",
		"Hello! Hope you're having a good {time_of_day}.",
		"Hi there! How may I assist you this {time_of_day}?",
	},
	"farewell": {
		"Goodbye! Have a nice {time_of_day}.",
		"See you later! Enjoy your {time_of_day}.",
		"Bye for now! Take care.",
	},
	"help.request": {
		"I can help you with several things: checking the time and date, basic conversation, and answering questions. What would you like to know?",
		"Here's what I can do: tell you the time and date, chat with you, and answer your questions. How can I assist you?",
	},
	"smalltalk.how_are_you": {
		"I'm doing well, thank you for asking! How can I help you today?",
		"I'm functioning perfectly! What can I do for you?",
		"All systems operational! How may I assist you?",
	},
	"time.query": {
		"It's {current_time}.",
		"The current time is {current_time}.",
		"Right now it's {current_time}.",
	},
	"date.query": {
		"Today is {weekday}, {formatted_date}.",
		"It's {weekday}, {formatted_date}.",
		"The date is {formatted_date}.",
	},
	"caregiver.notify": {
		"I'll notify your {role} right away.",
		"I'm contacting your {role} now.",
		"I'll get your {role} for you immediately.",
	},
}

// defaultVariants answers anything without a matching strategy, including
// the fallback intent.
var defaultVariants = []string{
	"I'm not sure I understood that. Could you please rephrase?",
	"I didn't quite catch that. Can you say it another way?",
	"I'm still learning. Could you try asking in a different way?",
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// TemplateStrategy renders one of a fixed set of variants. Selection
// avoids the variant last used for the same intent in this session (read
// from the context; never written here) and breaks ties by lowest index.
type TemplateStrategy struct {
	intentName string
	variants   []string
	clock      func() time.Time
}

// NewTemplateStrategy creates a template strategy. The clock feeds the
// time-derived placeholders; pass nil for time.Now.
func NewTemplateStrategy(intentName string, variants []string, clock func() time.Time) *TemplateStrategy {
	if clock == nil {
		clock = time.Now
	}
	return &TemplateStrategy{intentName: intentName, variants: variants, clock: clock}
}

func (t *TemplateStrategy) Generate(_ context.Context, intent api.Intent, sctx session.Context) (Result, error) {
	if len(t.variants) == 0 {
		return Result{}, fmt.Errorf("respond: no variants for intent %q", t.intentName)
	}

	variant := t.selectVariant(sctx)
	text, ok := t.render(t.variants[variant], intent, sctx)
	if !ok {
		// A placeholder could not be resolved: answer with the default
		// no-match phrasing instead of leaking a raw template.
		fallbackVariant := 0
		text, _ = t.render(defaultVariants[fallbackVariant], intent, sctx)
		return Result{Text: text, Intent: t.intentName, Variant: variant}, nil
	}
	return Result{Text: text, Intent: t.intentName, Variant: variant}, nil
}

// selectVariant returns the lowest index that differs from the variant
// last used for this intent in the session. With a single variant there
// is nothing to avoid.
func (t *TemplateStrategy) selectVariant(sctx session.Context) int {
	last, used := sctx.LastVariant[t.intentName]
	if !used || len(t.variants) == 1 {
		return 0
	}
	for i := range t.variants {
		if i != last {
			return i
		}
	}
	return 0
}

// render fills template placeholders. ok is false when any placeholder
// cannot be resolved.
func (t *TemplateStrategy) render(template string, intent api.Intent, sctx session.Context) (string, bool) {
	ok := true
	text := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v, found := t.resolvePlaceholder(key, intent, sctx); found {
			return v
		}
		ok = false
		return m
	})
	return text, ok
}

func (t *TemplateStrategy) resolvePlaceholder(key string, intent api.Intent, sctx session.Context) (string, bool) {
	if v, ok := intent.Entities[key]; ok {
		return v, true
	}
	if v, ok := sctx.Slots[key]; ok {
		return v, true
	}

	now := t.clock()
	switch key {
	case "time_of_day":
		return timeOfDay(now), true
	case "current_time":
		return now.Format("3:04 PM"), true
	case "weekday":
		return now.Format("Monday"), true
	case "formatted_date":
		return now.Format("January 2, 2006"), true
	case "date":
		return now.Format("2006-01-02"), true
	}
	return "", false
}

func timeOfDay(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

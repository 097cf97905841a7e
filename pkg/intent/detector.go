package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parley-dev/parley/pkg/api"
)

// Group is the ordered rule set for one intent name. Registration order of
// groups is the deterministic tie-break when confidences are equal.
type Group struct {
	Intent string
	Rules  []Rule
}

// Spec is the data-driven form of a pattern group, as carried in config.
// Substrings, Patterns (regular expressions), and Keywords each contribute
// one rule kind; at least one must be non-empty.
type Spec struct {
	Name       string
	Substrings []string
	Patterns   []string
	Keywords   []string
}

// Detector maps normalized text to a ranked list of candidate intents.
type Detector struct {
	groups        []Group
	minConfidence float64
}

// NewDetector creates a detector over the given groups. Matches below
// minConfidence are discarded; when nothing remains, Detect returns the
// fallback intent.
func NewDetector(minConfidence float64, groups ...Group) *Detector {
	return &Detector{groups: groups, minConfidence: minConfidence}
}

// FromSpecs builds a detector from a data-driven pattern table, compiling
// regex rules up front so Detect can never fail.
func FromSpecs(minConfidence float64, specs []Spec) (*Detector, error) {
	var groups []Group
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("intent: pattern group without a name")
		}
		var rules []Rule
		for _, sub := range s.Substrings {
			rules = append(rules, NewSubstringRule(sub))
		}
		for _, pat := range s.Patterns {
			r, err := NewRegexRule(pat)
			if err != nil {
				return nil, fmt.Errorf("intent %q: compiling pattern %q: %w", s.Name, pat, err)
			}
			rules = append(rules, r)
		}
		if len(s.Keywords) > 0 {
			rules = append(rules, NewKeywordRule(s.Keywords))
		}
		if len(rules) == 0 {
			return nil, fmt.Errorf("intent %q: no rules configured", s.Name)
		}
		groups = append(groups, Group{Intent: s.Name, Rules: rules})
	}
	return NewDetector(minConfidence, groups...), nil
}

// Detect returns candidate intents ranked by confidence, highest first.
// Equal confidences keep group registration order. Unmatched input yields
// exactly the fallback intent with confidence 0.0; Detect never fails.
func (d *Detector) Detect(text string) []api.Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return []api.Intent{api.FallbackIntent()}
	}

	var candidates []api.Intent
	for _, g := range d.groups {
		best := -1.0
		var bestEntities map[string]string
		for _, rule := range g.Rules {
			conf, entities, ok := rule.Match(text)
			if !ok {
				continue
			}
			if conf > best {
				best = conf
				bestEntities = entities
			}
		}
		if best < 0 || best < d.minConfidence {
			continue
		}
		if bestEntities == nil {
			bestEntities = map[string]string{}
		}
		candidates = append(candidates, api.Intent{
			Name:       g.Intent,
			Confidence: best,
			Entities:   bestEntities,
		})
	}

	if len(candidates) == 0 {
		return []api.Intent{api.FallbackIntent()}
	}

	// Stable sort preserves registration order among equal confidences.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

// Best returns the top-ranked intent for the text.
func (d *Detector) Best(text string) api.Intent {
	return d.Detect(text)[0]
}

// SupportedIntents returns the configured intent names in registration
// order.
func (d *Detector) SupportedIntents() []string {
	names := make([]string, len(d.groups))
	for i, g := range d.groups {
		names[i] = g.Intent
	}
	return names
}

// Package intent implements rule-based intent detection over an ordered,
// data-driven table of pattern groups. The detector is pure: no clock, no
// I/O, no state mutation, so literal tables make reproducible tests.
package intent

import (
	"regexp"
	"strings"
)

// Positional scoring: a match anchored at the start of the text is worth
// more than one found mid-sentence.
const (
	anchoredFactor   = 1.0
	unanchoredFactor = 0.8
)

// Rule matches a piece of normalized text and reports a confidence in
// [0, 1] plus any extracted entities. ok is false when the rule does not
// match at all.
type Rule interface {
	Match(text string) (confidence float64, entities map[string]string, ok bool)
}

// SubstringRule matches when the text contains the configured fragment,
// case-insensitively. Confidence is the fraction of the text covered by
// the fragment, discounted when the match is not at the start.
type SubstringRule struct {
	fragment string
}

// NewSubstringRule creates a substring rule. The fragment is matched
// case-insensitively.
func NewSubstringRule(fragment string) *SubstringRule {
	return &SubstringRule{fragment: strings.ToLower(fragment)}
}

func (r *SubstringRule) Match(text string) (float64, map[string]string, bool) {
	if len(text) == 0 || len(r.fragment) == 0 {
		return 0, nil, false
	}
	idx := strings.Index(strings.ToLower(text), r.fragment)
	if idx < 0 {
		return 0, nil, false
	}
	return spanConfidence(idx, len(r.fragment), len(text)), nil, true
}

// RegexRule matches against a compiled pattern. Named capture groups
// become entities keyed by group name.
type RegexRule struct {
	re *regexp.Regexp
}

// NewRegexRule compiles the pattern case-insensitively.
func NewRegexRule(pattern string) (*RegexRule, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	return &RegexRule{re: re}, nil
}

func (r *RegexRule) Match(text string) (float64, map[string]string, bool) {
	if len(text) == 0 {
		return 0, nil, false
	}
	loc := r.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, nil, false
	}

	var entities map[string]string
	for i, name := range r.re.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		if entities == nil {
			entities = make(map[string]string)
		}
		entities[name] = text[loc[2*i]:loc[2*i+1]]
	}

	return spanConfidence(loc[0], loc[1]-loc[0], len(text)), entities, true
}

// KeywordRule matches when at least one keyword from the set appears as a
// whole word. Confidence is the fraction of keywords present.
type KeywordRule struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewKeywordRule creates a keyword-set rule. Keywords are matched
// case-insensitively on word boundaries.
func NewKeywordRule(keywords []string) *KeywordRule {
	r := &KeywordRule{}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		r.keywords = append(r.keywords, k)
		r.patterns = append(r.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(k)+`\b`))
	}
	return r
}

func (r *KeywordRule) Match(text string) (float64, map[string]string, bool) {
	if len(text) == 0 || len(r.keywords) == 0 {
		return 0, nil, false
	}
	matched := 0
	for _, p := range r.patterns {
		if p.MatchString(text) {
			matched++
		}
	}
	if matched == 0 {
		return 0, nil, false
	}
	return float64(matched) / float64(len(r.keywords)), nil, true
}

// spanConfidence scores a match by the fraction of text it covers,
// discounted when it does not start the text. Clamped to 1.0.
func spanConfidence(start, length, textLen int) float64 {
	coverage := float64(length) / float64(textLen)
	factor := anchoredFactor
	if start != 0 {
		factor = unanchoredFactor
	}
	c := coverage * factor
	if c > 1.0 {
		c = 1.0
	}
	return c
}

package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ContentFilter blocks text containing any word from a configured ban
// list. It applies to both directions.
type ContentFilter struct {
	patterns map[string]*regexp.Regexp
	words    []string
}

// NewContentFilter compiles word-boundary patterns for the given words.
// Matching is case-insensitive.
func NewContentFilter(bannedWords []string) *ContentFilter {
	f := &ContentFilter{patterns: make(map[string]*regexp.Regexp)}
	for _, w := range bannedWords {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.words = append(f.words, w)
		f.patterns[w] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return f
}

func (f *ContentFilter) Name() string { return "content_filter" }

func (f *ContentFilter) Validate(text string, _ Direction) map[string]string {
	violations := make(map[string]string)
	for _, w := range f.words {
		if f.patterns[w].MatchString(text) {
			violations["banned_word"] = fmt.Sprintf("text contains banned word %q", w)
			break
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return violations
}

// Injection patterns checked by InputSanitizer.
var (
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`;\s*--`),
		regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|CREATE|EXEC|EXECUTE)\b`),
		regexp.MustCompile(`(?i)UNION\s+SELECT`),
		regexp.MustCompile(`(?i)'\s*(OR|AND)\s+'`),
		regexp.MustCompile(`--`),
		regexp.MustCompile(`(?s)/\*.*?\*/`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)<iframe`),
		regexp.MustCompile(`(?i)<object`),
		regexp.MustCompile(`(?i)<embed`),
	}

	pathTraversalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`\.\.\\`),
	}
)

// InputSanitizer validates user input against injection attacks and an
// input length cap. Output text is not checked.
type InputSanitizer struct {
	maxLength int
}

// NewInputSanitizer creates a sanitizer with the given input length cap.
// A cap of 0 disables the length check.
func NewInputSanitizer(maxLength int) *InputSanitizer {
	return &InputSanitizer{maxLength: maxLength}
}

func (s *InputSanitizer) Name() string { return "input_sanitizer" }

func (s *InputSanitizer) Validate(text string, direction Direction) map[string]string {
	if direction != DirectionInput {
		return nil
	}

	violations := make(map[string]string)

	if s.maxLength > 0 && len(text) > s.maxLength {
		violations["length_exceeded"] = fmt.Sprintf("input length %d exceeds maximum %d", len(text), s.maxLength)
	}
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(text) {
			violations["sql_injection"] = "SQL injection attempt detected"
			break
		}
	}
	for _, p := range xssPatterns {
		if p.MatchString(text) {
			violations["xss_attempt"] = "cross-site scripting attempt detected"
			break
		}
	}
	for _, p := range pathTraversalPatterns {
		if p.MatchString(text) {
			violations["path_traversal"] = "path traversal attempt detected"
			break
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return violations
}

// ResponseLength caps the length of generated responses. Input is not
// checked.
type ResponseLength struct {
	maxLength int
}

// NewResponseLength creates a validator rejecting responses longer than
// maxLength characters.
func NewResponseLength(maxLength int) *ResponseLength {
	return &ResponseLength{maxLength: maxLength}
}

func (r *ResponseLength) Name() string { return "response_length" }

func (r *ResponseLength) Validate(text string, direction Direction) map[string]string {
	if direction != DirectionOutput {
		return nil
	}
	if r.maxLength > 0 && len(text) > r.maxLength {
		return map[string]string{
			"response_too_long": fmt.Sprintf("response length %d exceeds maximum %d", len(text), r.maxLength),
		}
	}
	return nil
}

// RateLimit rejects input once more than limit evaluations have happened
// within the sliding window. The window is shared by every session going
// through the chain: this is a process-wide throttle, not a per-session
// quota. It is the one sanctioned time-dependent validator; leave it out
// of the chain for deterministic evaluation.
type RateLimit struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	stamps []time.Time
}

// NewRateLimit creates a rate limiter allowing limit input evaluations per
// window.
func NewRateLimit(limit int, window time.Duration) *RateLimit {
	return &RateLimit{limit: limit, window: window, now: time.Now}
}

func (r *RateLimit) Name() string { return "rate_limit" }

func (r *RateLimit) Validate(_ string, direction Direction) map[string]string {
	if direction != DirectionInput {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)
	kept := r.stamps[:0]
	for _, ts := range r.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.stamps = kept

	if len(r.stamps) >= r.limit {
		return map[string]string{
			"rate_limited": fmt.Sprintf("more than %d requests in %s", r.limit, r.window),
		}
	}
	r.stamps = append(r.stamps, now)
	return nil
}

package policy

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func defaultEngine() *Engine {
	e := NewEngine()
	e.AddValidator(NewContentFilter([]string{"stupid", "idiot"}))
	e.AddValidator(NewInputSanitizer(1000))
	e.AddValidator(NewResponseLength(500))
	return e
}

func TestCleanInputPasses(t *testing.T) {
	e := defaultEngine()

	result := e.Evaluate("hello, what time is it?", DirectionInput)
	if !result.Passed {
		t.Fatalf("clean input rejected: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("passed result carries violations: %v", result.Violations)
	}
}

func TestSQLInjectionBlocked(t *testing.T) {
	e := defaultEngine()

	result := e.Evaluate("'; DROP TABLE users;--", DirectionInput)
	if result.Passed {
		t.Fatal("SQL injection input passed")
	}
	if _, ok := result.Violations["sql_injection"]; !ok {
		t.Errorf("violations missing sql_injection key: %v", result.Violations)
	}
}

func TestXSSBlocked(t *testing.T) {
	e := defaultEngine()

	result := e.Evaluate(`<script>alert("x")</script>`, DirectionInput)
	if result.Passed {
		t.Fatal("XSS input passed")
	}
	if _, ok := result.Violations["xss_attempt"]; !ok {
		t.Errorf("violations missing xss_attempt key: %v", result.Violations)
	}
}

func TestPathTraversalBlocked(t *testing.T) {
	e := defaultEngine()

	result := e.Evaluate("read ../../etc/passwd please", DirectionInput)
	if result.Passed {
		t.Fatal("path traversal input passed")
	}
	if _, ok := result.Violations["path_traversal"]; !ok {
		t.Errorf("violations missing path_traversal key: %v", result.Violations)
	}
}

func TestAllValidatorsRun(t *testing.T) {
	e := defaultEngine()

	// Banned word plus SQL injection plus over-length in one input: the
	// chain must report all of them, not stop at the first failure.
	text := "you stupid machine; DROP TABLE users;-- " + strings.Repeat("a", 1001)
	result := e.Evaluate(text, DirectionInput)

	for _, rule := range []string{"banned_word", "sql_injection", "length_exceeded"} {
		if _, ok := result.Violations[rule]; !ok {
			t.Errorf("violations missing %s: %v", rule, result.Violations)
		}
	}
}

func TestDirectionScoping(t *testing.T) {
	e := defaultEngine()

	long := strings.Repeat("a", 600)

	// 600 chars is fine as input (cap 1000) but too long as output (cap 500).
	if result := e.Evaluate(long, DirectionInput); !result.Passed {
		t.Errorf("input direction rejected: %v", result.Violations)
	}
	if result := e.Evaluate(long, DirectionOutput); result.Passed {
		t.Error("output direction accepted over-length response")
	}

	// Injection checks only apply to input.
	if result := e.Evaluate("ignore previous -- comment", DirectionOutput); !result.Passed {
		t.Errorf("output direction ran input sanitizer: %v", result.Violations)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := defaultEngine()

	text := "'; DROP TABLE users;-- you idiot"
	first := e.Evaluate(text, DirectionInput)
	for i := 0; i < 10; i++ {
		got := e.Evaluate(text, DirectionInput)
		if got.Passed != first.Passed || !reflect.DeepEqual(got.Violations, first.Violations) {
			t.Fatalf("evaluation %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestContentFilterWordBoundary(t *testing.T) {
	f := NewContentFilter([]string{"hell"})

	if v := f.Validate("go to hell", DirectionInput); v == nil {
		t.Error("exact banned word not caught")
	}
	if v := f.Validate("say hello there", DirectionInput); v != nil {
		t.Errorf("substring inside a longer word flagged: %v", v)
	}
}

func TestEmptyChainPasses(t *testing.T) {
	e := NewEngine()
	if result := e.Evaluate("anything at all -- even this", DirectionInput); !result.Passed {
		t.Errorf("empty chain rejected input: %v", result.Violations)
	}
}

func TestRateLimit(t *testing.T) {
	r := NewRateLimit(2, time.Minute)
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	if v := r.Validate("a", DirectionInput); v != nil {
		t.Fatalf("first request limited: %v", v)
	}
	if v := r.Validate("b", DirectionInput); v != nil {
		t.Fatalf("second request limited: %v", v)
	}
	if v := r.Validate("c", DirectionInput); v == nil {
		t.Fatal("third request within window not limited")
	}

	// Window slides: after a minute the budget is free again.
	now = now.Add(61 * time.Second)
	if v := r.Validate("d", DirectionInput); v != nil {
		t.Fatalf("request after window limited: %v", v)
	}

	// Output direction is never rate limited.
	if v := r.Validate("e", DirectionOutput); v != nil {
		t.Fatalf("output direction limited: %v", v)
	}
}

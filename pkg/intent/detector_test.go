package intent

import (
	"testing"
)

func greetingDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := FromSpecs(0.1, []Spec{
		{Name: "greeting", Patterns: []string{`^(hello|hi|hey)\b.*`}},
		{Name: "farewell", Patterns: []string{`\b(goodbye|bye|see you)\b`}},
		{Name: "help.request", Keywords: []string{"help", "assist", "support"}},
		{Name: "time.query", Substrings: []string{"what time"}},
	})
	if err != nil {
		t.Fatalf("FromSpecs failed: %v", err)
	}
	return d
}

func TestGreetingFullConfidence(t *testing.T) {
	d := greetingDetector(t)

	best := d.Best("hello")
	if best.Name != "greeting" {
		t.Fatalf("intent = %q, want greeting", best.Name)
	}
	if best.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", best.Confidence)
	}
}

func TestUnmatchedYieldsFallback(t *testing.T) {
	d := greetingDetector(t)

	ranked := d.Detect("the weather is nice today")
	if len(ranked) != 1 {
		t.Fatalf("got %d candidates, want 1", len(ranked))
	}
	if !ranked[0].IsFallback() {
		t.Errorf("intent = %q, want fallback", ranked[0].Name)
	}
	if ranked[0].Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", ranked[0].Confidence)
	}
	if len(ranked[0].Entities) != 0 {
		t.Errorf("entities = %v, want empty", ranked[0].Entities)
	}
}

func TestEmptyInputYieldsFallback(t *testing.T) {
	d := greetingDetector(t)
	for _, text := range []string{"", "   ", "\t\n"} {
		if best := d.Best(text); !best.IsFallback() {
			t.Errorf("Best(%q) = %q, want fallback", text, best.Name)
		}
	}
}

func TestRankingByConfidence(t *testing.T) {
	d := greetingDetector(t)

	// "hello, can you help" matches greeting (anchored) and help.request
	// (one keyword of three). Greeting must rank first.
	ranked := d.Detect("hello, can you help")
	if len(ranked) < 2 {
		t.Fatalf("got %d candidates, want at least 2", len(ranked))
	}
	if ranked[0].Name != "greeting" {
		t.Errorf("top intent = %q, want greeting", ranked[0].Name)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Confidence > ranked[i-1].Confidence {
			t.Errorf("ranking not descending at %d: %v > %v", i, ranked[i].Confidence, ranked[i-1].Confidence)
		}
	}
}

func TestTieBreakByRegistrationOrder(t *testing.T) {
	d, err := FromSpecs(0.1, []Spec{
		{Name: "second.registered.later", Substrings: []string{"ping"}},
		{Name: "first.registered.later", Substrings: []string{"ping"}},
	})
	if err != nil {
		t.Fatalf("FromSpecs failed: %v", err)
	}

	// Identical rules, identical confidence: the earlier group wins.
	best := d.Best("ping")
	if best.Name != "second.registered.later" {
		t.Errorf("tie broken to %q, want the first-registered group", best.Name)
	}
}

func TestNamedCaptureGroupsBecomeEntities(t *testing.T) {
	d, err := FromSpecs(0.1, []Spec{
		{Name: "caregiver.notify", Patterns: []string{`(?:call|contact|notify) my (?P<role>caregiver|nurse|doctor)`}},
	})
	if err != nil {
		t.Fatalf("FromSpecs failed: %v", err)
	}

	best := d.Best("please contact my nurse")
	if best.Name != "caregiver.notify" {
		t.Fatalf("intent = %q, want caregiver.notify", best.Name)
	}
	if best.Entities["role"] != "nurse" {
		t.Errorf("role entity = %q, want nurse", best.Entities["role"])
	}
}

func TestMinConfidenceThreshold(t *testing.T) {
	// A short keyword hit in a long sentence scores 1/3 with three
	// keywords; a threshold above that forces fallback.
	d, err := FromSpecs(0.5, []Spec{
		{Name: "help.request", Keywords: []string{"help", "assist", "support"}},
	})
	if err != nil {
		t.Fatalf("FromSpecs failed: %v", err)
	}

	if best := d.Best("I could use some help over here"); !best.IsFallback() {
		t.Errorf("below-threshold match returned %q, want fallback", best.Name)
	}
}

func TestDetectNeverPanics(t *testing.T) {
	d := greetingDetector(t)
	inputs := []string{"", "🤖🤖🤖", "a", "hello hello hello hello", "\x00weird\x00"}
	for _, in := range inputs {
		ranked := d.Detect(in)
		if len(ranked) == 0 {
			t.Errorf("Detect(%q) returned no candidates", in)
		}
	}
}

func TestFromSpecsRejectsBadPattern(t *testing.T) {
	_, err := FromSpecs(0.1, []Spec{{Name: "broken", Patterns: []string{`([unclosed`}}})
	if err == nil {
		t.Fatal("FromSpecs accepted an invalid regex")
	}
}

func TestSubstringCaseInsensitive(t *testing.T) {
	d := greetingDetector(t)
	best := d.Best("WHAT TIME is it?")
	if best.Name != "time.query" {
		t.Errorf("intent = %q, want time.query", best.Name)
	}
}

package respond

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/session"
)

// Monday morning, so every clock-derived placeholder is predictable.
var fixedNow = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func emptyContext(sessionID string) session.Context {
	return session.Context{
		SessionID:   sessionID,
		Slots:       map[string]string{},
		LastVariant: map[string]int{},
	}
}

func intentNamed(name string) api.Intent {
	return api.Intent{Name: name, Confidence: 1.0, Entities: map[string]string{}}
}

func TestGreetingFirstVariant(t *testing.T) {
	r := Default(fixedClock)

	res, err := r.Generate(context.Background(), intentNamed("greeting"), emptyContext("sess_a"))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Variant)
	assert.Equal(t, "Good morning! How can I help you today?", res.Text)
	assert.Equal(t, "greeting", res.Intent)
}

func TestVariantAvoidsLastUsed(t *testing.T) {
	r := Default(fixedClock)

	sctx := emptyContext("sess_a")
	sctx.LastVariant["greeting"] = 0

	res, err := r.Generate(context.Background(), intentNamed("greeting"), sctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Variant, "must not repeat the last-used variant")
	assert.Equal(t, "Hello! Hope you're having a good morning.", res.Text)
}

func TestVariantTieBreaksToLowestIndex(t *testing.T) {
	r := Default(fixedClock)

	sctx := emptyContext("sess_a")
	sctx.LastVariant["greeting"] = 2

	res, err := r.Generate(context.Background(), intentNamed("greeting"), sctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Variant)
}

func TestSingleVariantAlwaysRepeats(t *testing.T) {
	s := NewTemplateStrategy("only", []string{"the one answer"}, fixedClock)

	sctx := emptyContext("sess_a")
	sctx.LastVariant["only"] = 0

	res, err := s.Generate(context.Background(), intentNamed("only"), sctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Variant)
	assert.Equal(t, "the one answer", res.Text)
}

func TestClockDerivedPlaceholders(t *testing.T) {
	r := Default(fixedClock)

	res, err := r.Generate(context.Background(), intentNamed("time.query"), emptyContext("sess_a"))
	require.NoError(t, err)
	assert.Equal(t, "It's 9:30 AM.", res.Text)

	res, err = r.Generate(context.Background(), intentNamed("date.query"), emptyContext("sess_a"))
	require.NoError(t, err)
	assert.Equal(t, "Today is Monday, March 2, 2026.", res.Text)
}

func TestEntityPlaceholder(t *testing.T) {
	r := Default(fixedClock)

	intent := intentNamed("caregiver.notify")
	intent.Entities["role"] = "nurse"

	res, err := r.Generate(context.Background(), intent, emptyContext("sess_a"))
	require.NoError(t, err)
	assert.Equal(t, "I'll notify your nurse right away.", res.Text)
}

func TestSlotFillsPlaceholderWhenEntityMissing(t *testing.T) {
	r := Default(fixedClock)

	sctx := emptyContext("sess_a")
	sctx.Slots["role"] = "doctor"

	res, err := r.Generate(context.Background(), intentNamed("caregiver.notify"), sctx)
	require.NoError(t, err)
	assert.Equal(t, "I'll notify your doctor right away.", res.Text)
}

func TestUnresolvedPlaceholderFallsBackToDefaultText(t *testing.T) {
	r := Default(fixedClock)

	// caregiver.notify needs {role}; neither entities nor slots carry it.
	res, err := r.Generate(context.Background(), intentNamed("caregiver.notify"), emptyContext("sess_a"))
	require.NoError(t, err)
	assert.Equal(t, defaultVariants[0], res.Text)
	assert.NotContains(t, res.Text, "{role}", "raw template must never leak")
}

func TestFallbackIntentUsesDefaultStrategy(t *testing.T) {
	r := Default(fixedClock)

	res, err := r.Generate(context.Background(), api.FallbackIntent(), emptyContext("sess_a"))
	require.NoError(t, err)
	assert.Equal(t, defaultVariants[0], res.Text)
}

func TestUnknownIntentRoutesToFallback(t *testing.T) {
	r := Default(fixedClock)

	res, err := r.Generate(context.Background(), intentNamed("weather.forecast"), emptyContext("sess_a"))
	require.NoError(t, err)
	assert.Equal(t, defaultVariants[0], res.Text)
}

func TestGenerateIsPure(t *testing.T) {
	r := Default(fixedClock)
	sctx := emptyContext("sess_a")

	for i := 0; i < 5; i++ {
		res, err := r.Generate(context.Background(), intentNamed("greeting"), sctx)
		require.NoError(t, err)
		// Same inputs, same outputs: the responder never records variant
		// use itself, so the answer must not drift between calls.
		assert.Equal(t, 0, res.Variant)
	}
	assert.Empty(t, sctx.LastVariant)
}

func TestTimeOfDayBoundaries(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{0, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{16, "afternoon"},
		{17, "evening"},
		{23, "evening"},
	}
	for _, tc := range cases {
		now := time.Date(2026, time.March, 2, tc.hour, 0, 0, 0, time.UTC)
		assert.Equal(t, tc.want, timeOfDay(now), "hour %d", tc.hour)
	}
}

func TestNewRequiresFallback(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

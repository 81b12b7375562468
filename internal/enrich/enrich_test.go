package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name    string
	res     Result
	outcome Outcome
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Analyze(ctx context.Context, path string) (Result, Outcome) {
	s.calls++
	return s.res, s.outcome
}

func TestChainFirstHitWins(t *testing.T) {
	first := &stubStrategy{name: "first", res: Result{Caption: "a cat"}, outcome: Hit}
	second := &stubStrategy{name: "second", res: Result{Caption: "unused"}, outcome: Hit}

	res, outcome := NewChain(first, second).Analyze(context.Background(), "/tmp/x.png")
	assert.Equal(t, Hit, outcome)
	assert.Equal(t, "a cat", res.Caption)
	assert.Equal(t, "first", res.Source)
	assert.Equal(t, 0, second.calls, "later strategies must not run after a hit")
}

func TestChainFallsThrough(t *testing.T) {
	failing := &stubStrategy{name: "local", outcome: Failed}
	backup := &stubStrategy{name: "cloud", res: Result{Caption: "rescued", Source: "cloud:model"}, outcome: Hit}

	res, outcome := NewChain(failing, backup).Analyze(context.Background(), "/tmp/x.png")
	assert.Equal(t, Hit, outcome)
	assert.Equal(t, "rescued", res.Caption)
	assert.Equal(t, "cloud:model", res.Source, "a strategy's own source is kept")
}

func TestChainOutcomes(t *testing.T) {
	t.Run("all failed", func(t *testing.T) {
		_, outcome := NewChain(
			&stubStrategy{outcome: Failed},
			&stubStrategy{outcome: Failed},
		).Analyze(context.Background(), "/tmp/x.png")
		assert.Equal(t, Failed, outcome)
	})

	t.Run("mixed failure and no data", func(t *testing.T) {
		_, outcome := NewChain(
			&stubStrategy{outcome: Failed},
			&stubStrategy{outcome: NoData},
		).Analyze(context.Background(), "/tmp/x.png")
		assert.Equal(t, NoData, outcome)
	})

	t.Run("empty chain", func(t *testing.T) {
		_, outcome := NewChain().Analyze(context.Background(), "/tmp/x.png")
		assert.Equal(t, NoData, outcome)
	})
}

func TestParseResult(t *testing.T) {
	t.Run("clean payload", func(t *testing.T) {
		res, ok := parseResult(`{"label":"receipt","caption":"a store receipt","tags":["shopping"],"confidence":0.9}`)
		require.True(t, ok)
		assert.Equal(t, "receipt", res.Label)
		assert.Equal(t, "a store receipt", res.Caption)
		assert.Equal(t, []string{"shopping"}, res.Tags)
		require.NotNil(t, res.Confidence)
		assert.InDelta(t, 0.9, *res.Confidence, 1e-9)
	})

	t.Run("json wrapped in prose", func(t *testing.T) {
		res, ok := parseResult("Sure! Here you go:\n{\"caption\":\"a dog\"}\nLet me know if...")
		require.True(t, ok)
		assert.Equal(t, "a dog", res.Caption)
	})

	t.Run("type stands in for label", func(t *testing.T) {
		res, ok := parseResult(`{"type":"invoice","description":"monthly bill"}`)
		require.True(t, ok)
		assert.Equal(t, "invoice", res.Label)
		assert.Equal(t, "monthly bill", res.Caption, "description backfills the caption")
	})

	t.Run("no json object", func(t *testing.T) {
		_, ok := parseResult("I cannot describe this image.")
		assert.False(t, ok)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, ok := parseResult(`{"label": }`)
		assert.False(t, ok)
	})
}

func TestResultEmpty(t *testing.T) {
	assert.True(t, Result{Label: "thing"}.Empty(), "a label alone is not usable")
	assert.False(t, Result{Caption: "words"}.Empty())
}

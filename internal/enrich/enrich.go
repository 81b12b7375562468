// Package enrich derives AI descriptions for files: vision labels and
// captions for images and PDFs, lightweight classification for text.
// Every provider is best-effort; the pipeline indexes a file with or
// without enrichment.
package enrich

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// Result carries whatever fields the model produced. Any subset may be
// empty; absence is not an error.
type Result struct {
	Label             string
	Caption           string
	Tags              []string
	Confidence        *float64
	DetectedText      string
	Purpose           string
	SuggestedFilename string
	Description       string

	// Source identifies which model produced the result,
	// e.g. "ollama:moondream" or "openai:gpt-4o-mini".
	Source string
}

// Empty reports whether the result carries no usable caption, the
// signal the fallback chain keys on.
func (r Result) Empty() bool {
	return r.Caption == ""
}

// Outcome is the typed result of one strategy attempt.
type Outcome int

const (
	// Hit means the strategy produced a usable result.
	Hit Outcome = iota
	// NoData means the strategy ran but produced nothing useful.
	NoData
	// Failed means the strategy errored; details are in its logs.
	Failed
)

// VisionStrategy analyzes an image or PDF file.
type VisionStrategy interface {
	Name() string
	Analyze(ctx context.Context, path string) (Result, Outcome)
}

// TextClassifier labels a plain-text snippet.
type TextClassifier interface {
	Classify(ctx context.Context, snippet, filename string) (Result, Outcome)
}

// Chain tries vision strategies in order; the first Hit wins. A chain
// with no strategies always reports NoData.
type Chain struct {
	strategies []VisionStrategy
	logger     *slog.Logger
}

// NewChain builds a chain over an explicit ordered strategy list.
func NewChain(strategies ...VisionStrategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     slog.Default().With("component", "enrich"),
	}
}

// Analyze runs the chain. The returned Outcome is Hit when any
// strategy produced data, NoData when all ran dry, Failed only when
// every strategy failed outright.
func (c *Chain) Analyze(ctx context.Context, path string) (Result, Outcome) {
	failures := 0
	for _, s := range c.strategies {
		res, outcome := s.Analyze(ctx, path)
		switch outcome {
		case Hit:
			if res.Source == "" {
				res.Source = s.Name()
			}
			return res, Hit
		case Failed:
			failures++
			c.logger.Debug("vision strategy failed", "strategy", s.Name(), "path", path)
		}
	}
	if len(c.strategies) > 0 && failures == len(c.strategies) {
		return Result{}, Failed
	}
	return Result{}, NoData
}

// enrichmentPayload is the JSON shape the models are prompted to emit.
type enrichmentPayload struct {
	Label             string   `json:"label"`
	Type              string   `json:"type"`
	Caption           string   `json:"caption"`
	Description       string   `json:"description"`
	Tags              []string `json:"tags"`
	Confidence        *float64 `json:"confidence"`
	DetectedText      string   `json:"detected_text"`
	Purpose           string   `json:"purpose"`
	SuggestedFilename string   `json:"suggested_filename"`
}

// parseResult extracts the first JSON object from a model response and
// maps it onto a Result. Models wrap JSON in prose often enough that
// the braces are located by scanning rather than trusting the shape.
func parseResult(content string) (Result, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}

	var p enrichmentPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &p); err != nil {
		return Result{}, false
	}

	res := Result{
		Label:             p.Label,
		Caption:           p.Caption,
		Tags:              p.Tags,
		Confidence:        p.Confidence,
		DetectedText:      p.DetectedText,
		Purpose:           p.Purpose,
		SuggestedFilename: p.SuggestedFilename,
		Description:       p.Description,
	}
	if res.Label == "" {
		res.Label = p.Type
	}
	if res.Caption == "" {
		res.Caption = p.Description
	}
	return res, true
}

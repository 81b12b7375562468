package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"filedex/internal/store"
)

const rerankSystemPrompt = "You are a reranker. Given a user query and a list of items " +
	"(id, name, label, tags, caption, ocr), return a JSON array of item ids " +
	"sorted from best to worst match. JSON only."

// rerankItem is the compact candidate shape sent to the model.
type rerankItem struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Label   string   `json:"label,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Caption string   `json:"caption,omitempty"`
	OCR     string   `json:"ocr,omitempty"`
}

// OpenAIReranker reorders keyword candidates with a cheap external
// model. Any failure, including an unparseable response, degrades to
// an empty set.
type OpenAIReranker struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

// NewOpenAIReranker builds the reranker, or errors when the client
// cannot be constructed.
func NewOpenAIReranker(apiKey, model string) (*OpenAIReranker, error) {
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return &OpenAIReranker{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "rerank", "model", model),
	}, nil
}

func (r *OpenAIReranker) Rerank(ctx context.Context, query string, candidates []store.SearchResult) []store.SearchResult {
	if len(candidates) == 0 {
		return nil
	}

	items := make([]rerankItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, rerankItem{
			ID:      c.ID,
			Name:    c.Name,
			Label:   c.Label,
			Tags:    c.Tags,
			Caption: truncate(c.Caption, 300),
			OCR:     truncate(c.OCRText, 200),
		})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		r.logger.Warn("rerank marshal", "error", err)
		return nil
	}

	user := fmt.Sprintf("Query: %s\nItems: %s\nReturn: [ids in best->worst order]", query, payload)
	resp, err := r.client.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, rerankSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(0))
	if err != nil {
		r.logger.Warn("rerank call failed", "error", err)
		return nil
	}
	if len(resp.Choices) == 0 {
		return nil
	}

	order, ok := ParseIDOrder(resp.Choices[0].Content)
	if !ok {
		r.logger.Warn("rerank response unparseable")
		return nil
	}
	return applyOrder(candidates, order)
}

// ParseIDOrder extracts a strict JSON array of ids from a model
// response that may wrap it in prose.
func ParseIDOrder(content string) ([]int64, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var ids []int64
	if err := json.Unmarshal([]byte(content[start:end+1]), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

// applyOrder reorders candidates by id, dropping ids the model
// invented, and assigns descending rank boosts for merge ordering.
func applyOrder(candidates []store.SearchResult, order []int64) []store.SearchResult {
	byID := make(map[int64]store.SearchResult, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	ranked := make([]store.SearchResult, 0, len(order))
	boost := float64(len(order))
	for _, id := range order {
		c, ok := byID[id]
		if !ok {
			continue
		}
		boost--
		c.Rank = 10 + boost
		ranked = append(ranked, c)
	}
	return ranked
}

// truncate caps s at n runes so a multi-byte rune is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

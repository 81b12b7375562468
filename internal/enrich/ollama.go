package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// OllamaClient calls the Ollama /api/chat endpoint, optionally with
// attached images for vision models.
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

// NewOllamaClient creates a client targeting the given Ollama instance.
func NewOllamaClient(baseURL string) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// Chat sends a single-turn prompt, with optional base64 images, and
// returns the model's response text.
func (c *OllamaClient) Chat(ctx context.Context, model, prompt string, images []string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model: model,
		Messages: []ollamaMessage{
			{Role: "user", Content: prompt, Images: images},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return result.Message.Content, nil
}

const detailedVisionPrompt = `Describe this image in detail. Respond with JSON only:
{"label": "<short type, e.g. screenshot, receipt, diagram>",
 "caption": "<two or three sentences describing the content>",
 "tags": ["<keyword>", ...],
 "detected_text": "<any visible text, or empty>",
 "confidence": <0.0-1.0>}`

const compactVisionPrompt = `Classify this image. Respond with JSON only:
{"label": "<one or two word type>",
 "caption": "<one short sentence>",
 "tags": ["<keyword>", ...],
 "confidence": <0.0-1.0>}`

// OllamaVision analyzes images with a local vision model. The prompt
// distinguishes the detailed describer from the compact classifier.
type OllamaVision struct {
	client *OllamaClient
	model  string
	prompt string
	logger *slog.Logger
}

// NewDetailedVision prefers long descriptions; it is the first link of
// the default chain.
func NewDetailedVision(client *OllamaClient, model string) *OllamaVision {
	return &OllamaVision{
		client: client,
		model:  model,
		prompt: detailedVisionPrompt,
		logger: slog.Default().With("component", "vision", "model", model),
	}
}

// NewCompactVision is the smaller, faster fallback classifier.
func NewCompactVision(client *OllamaClient, model string) *OllamaVision {
	return &OllamaVision{
		client: client,
		model:  model,
		prompt: compactVisionPrompt,
		logger: slog.Default().With("component", "vision", "model", model),
	}
}

func (v *OllamaVision) Name() string { return "ollama:" + v.model }

func (v *OllamaVision) Analyze(ctx context.Context, path string) (Result, Outcome) {
	img, err := fileToBase64(path)
	if err != nil {
		v.logger.Warn("read image", "path", path, "error", err)
		return Result{}, Failed
	}

	content, err := v.client.Chat(ctx, v.model, v.prompt, []string{img})
	if err != nil {
		v.logger.Warn("vision call", "path", path, "error", err)
		return Result{}, Failed
	}

	res, ok := parseResult(content)
	if !ok || res.Empty() {
		return Result{}, NoData
	}
	res.Source = v.Name()
	return res, Hit
}

const textClassifyPrompt = `You classify files from a text snippet. Respond with JSON only:
{"label": "<one or two word type, e.g. invoice, source code, notes>",
 "purpose": "<what the file is for, one short phrase>",
 "suggested_filename": "<a better file name, or empty>",
 "tags": ["<keyword>", ...],
 "description": "<one sentence summary>"}

File name: %s
Snippet:
%s`

// OllamaText classifies non-image files from a bounded content prefix.
type OllamaText struct {
	client *OllamaClient
	model  string
	logger *slog.Logger
}

func NewOllamaText(client *OllamaClient, model string) *OllamaText {
	return &OllamaText{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "text-classify", "model", model),
	}
}

func (t *OllamaText) Name() string { return "ollama:" + t.model }

func (t *OllamaText) Classify(ctx context.Context, snippet, filename string) (Result, Outcome) {
	if snippet == "" {
		return Result{}, NoData
	}

	content, err := t.client.Chat(ctx, t.model, fmt.Sprintf(textClassifyPrompt, filename, snippet), nil)
	if err != nil {
		t.logger.Warn("text classify call", "file", filename, "error", err)
		return Result{}, Failed
	}

	res, ok := parseResult(content)
	if !ok {
		return Result{}, NoData
	}
	if res.Label == "" && res.Caption == "" && res.Description == "" {
		return Result{}, NoData
	}
	res.Source = t.Name()
	return res, Hit
}

// fileToBase64 reads a file and encodes it for the vision APIs.
func fileToBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

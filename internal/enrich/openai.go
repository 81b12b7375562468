package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const cloudVisionPrompt = `Analyze this file and respond with JSON only:
{"label": "<short type>",
 "caption": "<one or two sentences describing the content>",
 "tags": ["<keyword>", ...],
 "detected_text": "<any visible text, or empty>",
 "confidence": <0.0-1.0>}
The original file name is %q.`

// OpenAIVision is the cloud fallback at the end of the default chain,
// and the only strategy when the cloud-only toggle is set.
type OpenAIVision struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

// NewOpenAIVision builds the cloud strategy. Returns an error when the
// client cannot be constructed (e.g. empty key).
func NewOpenAIVision(apiKey, model string) (*OpenAIVision, error) {
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return &OpenAIVision{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "vision", "model", "openai:"+model),
	}, nil
}

func (v *OpenAIVision) Name() string { return "openai:" + v.model }

func (v *OpenAIVision) Analyze(ctx context.Context, path string) (Result, Outcome) {
	img, err := fileToBase64(path)
	if err != nil {
		v.logger.Warn("read image", "path", path, "error", err)
		return Result{}, Failed
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMime(path), img)
	resp, err := v.client.GenerateContent(ctx, []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextContent{Text: fmt.Sprintf(cloudVisionPrompt, filepath.Base(path))},
				llms.ImageURLContent{URL: dataURL},
			},
		},
	}, llms.WithTemperature(0))
	if err != nil {
		v.logger.Warn("openai vision call", "path", path, "error", err)
		return Result{}, Failed
	}
	if len(resp.Choices) == 0 {
		return Result{}, NoData
	}

	res, ok := parseResult(resp.Choices[0].Content)
	if !ok || res.Empty() {
		return Result{}, NoData
	}
	res.Source = v.Name()
	return res, Hit
}

func imageMime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "image/png"
	}
}

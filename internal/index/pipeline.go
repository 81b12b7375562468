// Package index orchestrates the indexing pipeline: scan a directory,
// derive metadata and a content hash per file, enrich with AI
// descriptions, upsert into the store, and derive an embedding.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"filedex/internal/config"
	"filedex/internal/embedder"
	"filedex/internal/enrich"
	"filedex/internal/scan"
	"filedex/internal/store"
)

// snippetBytes bounds the prefix read for text classification.
const snippetBytes = 8000

// embedTextCap bounds the synthesized text blob sent to the embedder.
const embedTextCap = 5000

// ProgressFunc receives per-file progress. It may be called from a
// worker goroutine; the receiver marshals to any UI itself.
type ProgressFunc func(done, total int, message string)

// Result aggregates one IndexDirectory run.
type Result struct {
	TotalFiles   int
	IndexedFiles int
	FilesWithOCR int
	Directory    string
	Truncated    bool
}

// Pipeline turns directories into populated file records and
// embeddings. Enrichment and embedding failures are tolerated per
// file; only directory-level preconditions abort a run.
type Pipeline struct {
	store  store.Store
	vision *enrich.Chain
	text   enrich.TextClassifier
	embed  embedder.Embedder
	ocr    scan.OCRFunc
	cfg    *config.Config
	logger *slog.Logger
}

// New assembles a pipeline from explicit collaborators. Any of vision,
// text, embed, and ocr may be nil to disable that stage.
func New(st store.Store, vision *enrich.Chain, text enrich.TextClassifier, emb embedder.Embedder, ocr scan.OCRFunc, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:  st,
		vision: vision,
		text:   text,
		embed:  emb,
		ocr:    ocr,
		cfg:    cfg,
		logger: slog.Default().With("component", "pipeline"),
	}
}

// NewFromConfig wires the default collaborators: the local vision
// chain (detailed, then compact, then cloud when a key is present), or
// cloud-only when the toggle is set; the local text classifier; and
// the Ollama embedder.
func NewFromConfig(cfg *config.Config, st store.Store) *Pipeline {
	client := enrich.NewOllamaClient(cfg.OllamaURL)

	var strategies []enrich.VisionStrategy
	if cfg.UseOpenAIOnly {
		if cloud, err := enrich.NewOpenAIVision(cfg.OpenAIKey, cfg.OpenAIModel); err == nil {
			strategies = append(strategies, cloud)
		}
	} else {
		strategies = append(strategies,
			enrich.NewDetailedVision(client, cfg.VisionModel),
			enrich.NewCompactVision(client, cfg.VisionModelSmall),
		)
		if cfg.OpenAIKey != "" {
			if cloud, err := enrich.NewOpenAIVision(cfg.OpenAIKey, cfg.OpenAIModel); err == nil {
				strategies = append(strategies, cloud)
			}
		}
	}

	var text enrich.TextClassifier
	if !cfg.UseOpenAIOnly {
		text = enrich.NewOllamaText(client, cfg.TextModel)
	}

	return New(st, enrich.NewChain(strategies...), text,
		embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel), nil, cfg)
}

// IndexDirectory scans dir and indexes every discovered file. Files
// are processed in scan order with monotonically increasing progress
// counts; cancellation is honored at the per-file boundary. A bad
// directory is the one error with no meaningful partial result, so it
// is returned rather than folded into counts.
func (p *Pipeline) IndexDirectory(ctx context.Context, dir string, recursive bool, progress ProgressFunc) (*Result, error) {
	p.logger.Info("indexing directory", "dir", dir, "recursive", recursive)

	files, truncated, err := p.scanFiles(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	res := &Result{
		TotalFiles: len(files),
		Directory:  dir,
		Truncated:  truncated,
	}
	if progress != nil {
		progress(0, len(files), "Starting indexing...")
	}

	for i, meta := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec := p.indexOne(ctx, meta)
		if rec != nil {
			res.IndexedFiles++
			if rec.HasOCR {
				res.FilesWithOCR++
			}
		}

		if progress != nil {
			progress(i+1, len(files), "Indexed: "+meta.Name)
		}
	}

	p.logger.Info("indexing finished",
		"dir", dir, "total", res.TotalFiles,
		"indexed", res.IndexedFiles, "with_ocr", res.FilesWithOCR)
	return res, nil
}

func (p *Pipeline) scanFiles(dir string, recursive bool) ([]scan.FileMeta, bool, error) {
	maxFiles := p.cfg.MaxScanFiles
	if maxFiles <= 0 {
		maxFiles = 1000
	}
	return scan.Scan(dir, recursive, maxFiles, p.ocr, p.logger)
}

// indexOne indexes a single file and returns the upserted record, or
// nil when the store rejected it. Enrichment and embedding failures
// never fail the file.
func (p *Pipeline) indexOne(ctx context.Context, meta scan.FileMeta) *store.FileRecord {
	hash := hashFile(meta.Path)

	rec := recordFromMeta(meta)
	rec.ContentHash = hash
	rec.LastIndexedAt = time.Now().UTC().Format(time.RFC3339)

	// An unchanged file keeps its previous enrichment; re-running the
	// models would produce the same answers at full cost.
	prev := p.store.GetByPath(meta.Path)
	unchanged := prev != nil && hash != "" && prev.ContentHash == hash
	if unchanged {
		carryEnrichment(&rec, prev)
	} else {
		p.enrichRecord(ctx, &rec, meta)
	}

	id, ok := p.store.Upsert(rec)
	if !ok {
		p.logger.Warn("upsert rejected", "path", meta.Path)
		return nil
	}
	rec.ID = id

	if !unchanged {
		p.storeEmbedding(ctx, &rec)
	}
	return &rec
}

func (p *Pipeline) enrichRecord(ctx context.Context, rec *store.FileRecord, meta scan.FileMeta) {
	if scan.IsVisual(meta.Extension) {
		if p.vision == nil {
			return
		}
		res, outcome := p.vision.Analyze(ctx, meta.Path)
		if outcome == enrich.Hit {
			applyEnrichment(rec, res)
		}
		return
	}

	if p.text == nil || p.cfg.UseOpenAIOnly {
		return
	}
	snippet := readSnippet(meta.Path)
	if snippet == "" {
		return
	}
	res, outcome := p.text.Classify(ctx, snippet, meta.Name)
	if outcome == enrich.Hit {
		applyEnrichment(rec, res)
	}
}

func (p *Pipeline) storeEmbedding(ctx context.Context, rec *store.FileRecord) {
	if p.embed == nil {
		return
	}
	blob := embedText(rec)
	vec, err := p.embed.EmbedSingle(ctx, blob)
	if err != nil {
		p.logger.Warn("embedding failed", "path", rec.Path, "error", err)
		return
	}
	if len(vec) == 0 {
		return
	}
	p.store.UpsertEmbedding(rec.ID, p.embed.Model(), vec)
}

// recordFromMeta maps scan metadata onto a store record, stashing the
// scan-time flags in the free-form metadata map.
func recordFromMeta(meta scan.FileMeta) store.FileRecord {
	md := map[string]any{
		"is_file": meta.IsFile,
		"is_dir":  meta.IsDir,
	}
	if meta.Error != "" {
		md["error"] = meta.Error
	}
	return store.FileRecord{
		Path:      meta.Path,
		Name:      meta.Name,
		Extension: meta.Extension,
		Size:      meta.Size,
		MimeType:  meta.MimeType,
		Category:  meta.Category,
		Created:   meta.Created,
		Modified:  meta.Modified,
		HasOCR:    meta.HasOCR,
		OCRText:   meta.OCRText,
		Metadata:  md,
	}
}

// applyEnrichment copies AI-produced fields onto the record, with the
// auxiliary fields going to the metadata map.
func applyEnrichment(rec *store.FileRecord, res enrich.Result) {
	rec.Label = res.Label
	rec.Caption = res.Caption
	rec.Tags = res.Tags
	rec.VisionConfidence = res.Confidence
	rec.AISource = res.Source

	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}
	if res.Purpose != "" {
		rec.Metadata["purpose"] = res.Purpose
	}
	if res.SuggestedFilename != "" {
		rec.Metadata["suggested_filename"] = res.SuggestedFilename
	}
	if res.DetectedText != "" {
		rec.Metadata["detected_text"] = res.DetectedText
	}
	if res.Description != "" {
		rec.Metadata["description"] = res.Description
	}
}

// carryEnrichment copies the previous record's AI fields forward for
// an unchanged file.
func carryEnrichment(rec *store.FileRecord, prev *store.FileRecord) {
	rec.Label = prev.Label
	rec.Caption = prev.Caption
	rec.Tags = prev.Tags
	rec.VisionConfidence = prev.VisionConfidence
	rec.AISource = prev.AISource
	if prev.OCRText != "" && rec.OCRText == "" {
		rec.OCRText = prev.OCRText
		rec.HasOCR = true
	}
}

// embedText synthesizes the compact blob an embedding describes:
// name, label, tags, caption, and OCR text, capped.
func embedText(rec *store.FileRecord) string {
	parts := []string{rec.Name}
	if rec.Label != "" {
		parts = append(parts, rec.Label)
	}
	if len(rec.Tags) > 0 {
		parts = append(parts, strings.Join(rec.Tags, " "))
	}
	if rec.Caption != "" {
		parts = append(parts, rec.Caption)
	}
	if rec.OCRText != "" {
		parts = append(parts, rec.OCRText)
	}
	blob := strings.Join(parts, " ")
	if len(blob) > embedTextCap {
		// Cap on runes so a multi-byte rune is never split.
		if r := []rune(blob); len(r) > embedTextCap {
			blob = string(r[:embedTextCap])
		}
	}
	return blob
}

// hashFile computes a streaming SHA-256 over the whole file so large
// files never need full buffering. Returns "" on any error.
func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// readSnippet reads a bounded prefix of a file as text.
func readSnippet(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, snippetBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return ""
	}
	return string(buf[:n])
}

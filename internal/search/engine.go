// Package search turns free-text queries into ranked, presentation-
// ready result lists by blending keyword search with either local
// semantic similarity or an external re-ranker.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"filedex/internal/config"
	"filedex/internal/embedder"
	"filedex/internal/store"
)

// ocrPreviewLen bounds the OCR excerpt attached to results.
const ocrPreviewLen = 200

// rerankCandidates caps the batch sent to the external re-ranker.
const rerankCandidates = 20

// dateRangeWindow bounds the scan backing date-range queries.
const dateRangeWindow = 1000

// Result is a presentation-ready search hit.
type Result struct {
	store.FileRecord

	// Rank is the merged score, normalized to [0,1].
	Rank float64
	// Relevance equals Rank clamped to [0,1]; kept as its own field
	// so front ends don't re-derive it.
	Relevance float64
	// Exists is a point-in-time check that the file is still on disk.
	Exists bool
	// SizeFormatted is a human-readable size, e.g. "3.4 MB".
	SizeFormatted string
	// OCRPreview is a bounded excerpt of the OCR text, or "".
	OCRPreview string
}

// Query is the parsed form of a raw query string.
type Query struct {
	Terms   []string
	Filters store.Filters
}

// ParseQuery tokenizes on whitespace and lifts operator tokens into
// filters: type:<x> and label:<x> set the label filter, tag:<x>
// appends a tag, has:ocr and has:vision set booleans. Parsing is
// purely syntactic and cannot fail; operator-shaped tokens that aren't
// recognized degrade to plain terms.
func ParseQuery(raw string) Query {
	var q Query
	for _, tok := range strings.Fields(raw) {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "type:"), strings.HasPrefix(lower, "label:"):
			q.Filters.Label = tok[strings.Index(tok, ":")+1:]
		case strings.HasPrefix(lower, "tag:"):
			q.Filters.Tags = append(q.Filters.Tags, tok[len("tag:"):])
		case lower == "has:ocr":
			q.Filters.HasOCR = true
		case lower == "has:vision":
			q.Filters.HasVision = true
		default:
			q.Terms = append(q.Terms, tok)
		}
	}
	return q
}

// Reranker reorders a candidate set via an external scoring call.
// Failures degrade to an empty set; keyword results still stand.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []store.SearchResult) []store.SearchResult
}

// Engine executes queries against the store.
type Engine struct {
	store    store.Store
	embed    embedder.Embedder
	reranker Reranker
	cfg      *config.Config
	logger   *slog.Logger
}

// NewEngine builds a query engine. embed may be nil (no semantic
// search); reranker may be nil (no external re-rank).
func NewEngine(st store.Store, emb embedder.Embedder, rr Reranker, cfg *config.Config) *Engine {
	return &Engine{
		store:    st,
		embed:    emb,
		reranker: rr,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search"),
	}
}

// Search runs the full pipeline: parse, keyword search, semantic
// search or external re-rank, merge, enrich, and history logging.
func (e *Engine) Search(ctx context.Context, query string, limit int) []Result {
	q := ParseQuery(query)

	keyword := e.store.SearchAdvanced(q.Terms, q.Filters, limit)

	var secondary []store.SearchResult
	if e.reranker != nil && e.cfg.UseOpenAIRerank {
		n := min(rerankCandidates, len(keyword))
		secondary = e.reranker.Rerank(ctx, query, keyword[:n])
	} else {
		secondary = e.semanticSearch(ctx, query, q.Filters, limit)
	}

	merged := mergeResults(keyword, secondary, limit)

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, e.enrichResult(r))
	}

	e.store.LogSearch(query, len(results))
	e.logger.Info("search", "query", query, "results", len(results))
	return results
}

// semanticSearch embeds the query (widened with filter values) and
// scores it against every stored embedding of matching dimensionality.
// A query that cannot be embedded, or a store with no dimension-
// compatible vectors, contributes nothing.
func (e *Engine) semanticSearch(ctx context.Context, query string, f store.Filters, limit int) []store.SearchResult {
	if e.embed == nil {
		return nil
	}

	qtext := query
	if f.Label != "" {
		qtext += " " + f.Label
	}
	if len(f.Tags) > 0 {
		qtext += " " + strings.Join(f.Tags, " ")
	}

	qvec, err := e.embed.EmbedSingle(ctx, qtext)
	if err != nil {
		e.logger.Warn("query embedding failed", "error", err)
		return nil
	}
	if len(qvec) == 0 {
		return nil
	}

	type scored struct {
		fileID int64
		cos    float64
	}
	var hits []scored
	for _, emb := range e.store.GetAllEmbeddings() {
		if len(emb.Vector) != len(qvec) {
			continue
		}
		hits = append(hits, scored{fileID: emb.FileID, cos: Cosine(qvec, emb.Vector)})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].cos > hits[j].cos })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	ids := make([]int64, len(hits))
	rank := make(map[int64]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.fileID
		rank[h.fileID] = h.cos
	}

	recs := e.store.GetByIDs(ids)
	out := make([]store.SearchResult, 0, len(recs))
	for _, rec := range recs {
		out = append(out, store.SearchResult{FileRecord: rec, Rank: rank[rec.ID]})
	}
	return out
}

// mergeResults unions two result sets by file ID. Scores from the two
// paths live on different scales, so each set is min-max rescaled to
// [0,1] before the max is taken for files present in both.
func mergeResults(a, b []store.SearchResult, limit int) []store.SearchResult {
	normalize(a)
	normalize(b)

	byID := make(map[int64]store.SearchResult, len(a)+len(b))
	for _, r := range append(append([]store.SearchResult(nil), a...), b...) {
		if prev, ok := byID[r.ID]; ok {
			if r.Rank > prev.Rank {
				byID[r.ID] = r
			}
			continue
		}
		byID[r.ID] = r
	}

	merged := make([]store.SearchResult, 0, len(byID))
	for _, r := range byID {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Rank != merged[j].Rank {
			return merged[i].Rank > merged[j].Rank
		}
		return merged[i].Name < merged[j].Name
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// normalize min-max rescales ranks to [0,1] in place. A set with one
// distinct score maps to 1.0 when positive, 0.0 otherwise.
func normalize(rs []store.SearchResult) {
	if len(rs) == 0 {
		return
	}
	lo, hi := rs[0].Rank, rs[0].Rank
	for _, r := range rs[1:] {
		if r.Rank < lo {
			lo = r.Rank
		}
		if r.Rank > hi {
			hi = r.Rank
		}
	}
	if hi == lo {
		v := 0.0
		if hi > 0 {
			v = 1.0
		}
		for i := range rs {
			rs[i].Rank = v
		}
		return
	}
	for i := range rs {
		rs[i].Rank = (rs[i].Rank - lo) / (hi - lo)
	}
}

// enrichResult attaches the presentation-ready derived fields.
func (e *Engine) enrichResult(r store.SearchResult) Result {
	out := Result{
		FileRecord:    r.FileRecord,
		Rank:          r.Rank,
		Relevance:     clamp01(r.Rank),
		SizeFormatted: FormatSize(r.Size),
	}
	if _, err := os.Stat(r.Path); err == nil {
		out.Exists = true
	}
	if r.OCRText != "" {
		out.OCRPreview = truncate(r.OCRText, ocrPreviewLen)
		if out.OCRPreview != r.OCRText {
			out.OCRPreview += "..."
		}
	}
	return out
}

// SearchByCategory scopes a keyword search to one category.
func (e *Engine) SearchByCategory(category string, limit int) []Result {
	// Quoted so category values with separators survive the FTS grammar.
	hits := e.store.SearchText(fmt.Sprintf("category:%q", category), limit)
	results := make([]Result, 0, len(hits))
	for _, r := range hits {
		results = append(results, e.enrichResult(r))
	}
	return results
}

// SearchByDateRange returns files whose modified date falls within
// [start, end]. Dates are zero-padded ISO-8601 strings, so the
// comparison is lexicographic.
func (e *Engine) SearchByDateRange(start, end string, limit int) []Result {
	window := e.store.SearchAdvanced(nil, store.Filters{}, dateRangeWindow)

	var results []Result
	for _, r := range window {
		if r.Modified < start || r.Modified > end {
			continue
		}
		results = append(results, e.enrichResult(r))
		if len(results) >= limit {
			break
		}
	}
	return results
}

// Suggestions matches a partial query against recent history,
// deduplicated, most recent first.
func (e *Engine) Suggestions(partial string, limit int) []string {
	history := e.store.SearchHistory(50)
	needle := strings.ToLower(partial)

	seen := make(map[string]bool)
	var out []string
	for _, h := range history {
		if !strings.Contains(strings.ToLower(h.Query), needle) {
			continue
		}
		if seen[h.Query] {
			continue
		}
		seen[h.Query] = true
		out = append(out, h.Query)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// FileDetails returns the enriched record for one path, or nil.
func (e *Engine) FileDetails(path string) *Result {
	rec := e.store.GetByPath(path)
	if rec == nil {
		return nil
	}
	r := e.enrichResult(store.SearchResult{FileRecord: *rec})
	return &r
}

// Statistics exposes the store's aggregate counts.
func (e *Engine) Statistics() store.Statistics {
	return e.store.Statistics()
}

// UpdateFileField forwards a narrow user edit to the store.
func (e *Engine) UpdateFileField(id int64, field store.EditableField, value any) bool {
	return e.store.UpdateField(id, field, value)
}

// FormatSize renders a byte count with binary prefixes and one
// decimal place.
func FormatSize(size int64) string {
	if size == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	val := float64(size)
	i := 0
	for val >= 1024 && i < len(units)-1 {
		val /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", size)
	}
	return fmt.Sprintf("%.1f %s", val, units[i])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

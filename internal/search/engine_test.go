package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedex/internal/config"
	"filedex/internal/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	return NewEngine(st, nil, nil, &config.Config{})
}

// fixedEmbedder returns the same vector for every text.
type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func (f *fixedEmbedder) Model() string { return "test" }

func TestParseQuery(t *testing.T) {
	t.Run("plain terms", func(t *testing.T) {
		q := ParseQuery("vacation photos 2026")
		assert.Equal(t, []string{"vacation", "photos", "2026"}, q.Terms)
		assert.Equal(t, store.Filters{}, q.Filters)
	})

	t.Run("operators lift into filters", func(t *testing.T) {
		q := ParseQuery("invoice type:pdf tag:work tag:urgent has:ocr has:vision")
		assert.Equal(t, []string{"invoice"}, q.Terms)
		assert.Equal(t, "pdf", q.Filters.Label)
		assert.Equal(t, []string{"work", "urgent"}, q.Filters.Tags)
		assert.True(t, q.Filters.HasOCR)
		assert.True(t, q.Filters.HasVision)
	})

	t.Run("label wins over type", func(t *testing.T) {
		q := ParseQuery("type:pdf label:receipt")
		assert.Equal(t, "receipt", q.Filters.Label)
	})

	t.Run("unknown operator shapes stay terms", func(t *testing.T) {
		q := ParseQuery("size:large has:wings")
		assert.Equal(t, []string{"size:large", "has:wings"}, q.Terms)
		assert.Equal(t, store.Filters{}, q.Filters)
	})

	t.Run("empty query", func(t *testing.T) {
		q := ParseQuery("   ")
		assert.Empty(t, q.Terms)
	})
}

func TestCosine(t *testing.T) {
	t.Run("self similarity is one", func(t *testing.T) {
		v := []float32{0.3, -0.7, 1.2}
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
	})

	t.Run("orthogonal vectors score zero", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("opposite vectors score minus one", func(t *testing.T) {
		assert.InDelta(t, -1.0, Cosine([]float32{1, 2}, []float32{-1, -2}), 1e-9)
	})

	t.Run("mismatched lengths score zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	})

	t.Run("zero vector does not divide by zero", func(t *testing.T) {
		assert.NotPanics(t, func() {
			Cosine([]float32{0, 0}, []float32{1, 1})
		})
	})
}

func TestNormalize(t *testing.T) {
	t.Run("rescales to unit interval", func(t *testing.T) {
		rs := []store.SearchResult{{Rank: 2}, {Rank: 6}, {Rank: 4}}
		normalize(rs)
		assert.Equal(t, 0.0, rs[0].Rank)
		assert.Equal(t, 1.0, rs[1].Rank)
		assert.Equal(t, 0.5, rs[2].Rank)
	})

	t.Run("single positive score becomes one", func(t *testing.T) {
		rs := []store.SearchResult{{Rank: 3.5}}
		normalize(rs)
		assert.Equal(t, 1.0, rs[0].Rank)
	})

	t.Run("uniform zero scores stay zero", func(t *testing.T) {
		rs := []store.SearchResult{{Rank: 0}, {Rank: 0}}
		normalize(rs)
		assert.Equal(t, 0.0, rs[0].Rank)
		assert.Equal(t, 0.0, rs[1].Rank)
	})
}

func TestMergeResults(t *testing.T) {
	rec := func(id int64, name string, rank float64) store.SearchResult {
		r := store.SearchResult{Rank: rank}
		r.ID = id
		r.Name = name
		return r
	}

	t.Run("union keeps max normalized score", func(t *testing.T) {
		a := []store.SearchResult{rec(1, "a", 2), rec(2, "b", 4)}
		b := []store.SearchResult{rec(2, "b", 0.2), rec(3, "c", 0.9)}
		merged := mergeResults(a, b, 10)
		require.Len(t, merged, 3)
		// b: 1.0 both ways; c: normalized 1.0 in its own set.
		assert.Equal(t, int64(2), merged[0].ID)
		assert.Equal(t, 1.0, merged[0].Rank)
	})

	t.Run("limit truncates", func(t *testing.T) {
		a := []store.SearchResult{rec(1, "a", 1), rec(2, "b", 2), rec(3, "c", 3)}
		merged := mergeResults(a, nil, 2)
		assert.Len(t, merged, 2)
	})

	t.Run("equal ranks tiebreak on name", func(t *testing.T) {
		a := []store.SearchResult{rec(2, "zebra", 1), rec(1, "apple", 1)}
		merged := mergeResults(a, nil, 10)
		require.Len(t, merged, 2)
		assert.Equal(t, "apple", merged[0].Name)
	})
}

func TestSearchKeywordOnly(t *testing.T) {
	st := openTestStore(t)

	dir := t.TempDir()
	onDisk := filepath.Join(dir, "invoice-march.pdf")
	require.NoError(t, os.WriteFile(onDisk, []byte("x"), 0o644))

	rec := store.FileRecord{
		Path:     onDisk,
		Name:     "invoice-march.pdf",
		Size:     2048,
		Category: "Documents/PDFs",
		HasOCR:   true,
		OCRText:  "invoice total 340.00",
	}
	_, ok := st.Upsert(rec)
	require.True(t, ok)

	ghost := store.FileRecord{
		Path:     "/nonexistent/invoice-old.pdf",
		Name:     "invoice-old.pdf",
		Category: "Documents/PDFs",
	}
	_, ok = st.Upsert(ghost)
	require.True(t, ok)

	eng := newTestEngine(t, st)
	results := eng.Search(context.Background(), "invoice has:ocr", 10)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, onDisk, r.Path)
	assert.True(t, r.Exists)
	assert.Equal(t, "2.0 KB", r.SizeFormatted)
	assert.Equal(t, "invoice total 340.00", r.OCRPreview)
	assert.GreaterOrEqual(t, r.Relevance, 0.0)
	assert.LessOrEqual(t, r.Relevance, 1.0)

	history := st.SearchHistory(1)
	require.Len(t, history, 1)
	assert.Equal(t, "invoice has:ocr", history[0].Query)
	assert.Equal(t, 1, history[0].ResultCount)
}

func TestSearchSemanticContribution(t *testing.T) {
	st := openTestStore(t)

	rec := store.FileRecord{Path: "/tmp/beach.jpg", Name: "beach.jpg", Category: "Images/Photos", Caption: "a sunny beach"}
	id, ok := st.Upsert(rec)
	require.True(t, ok)
	require.True(t, st.UpsertEmbedding(id, "test", []float32{1, 0, 0}))

	other := store.FileRecord{Path: "/tmp/city.jpg", Name: "city.jpg", Category: "Images/Photos"}
	otherID, ok := st.Upsert(other)
	require.True(t, ok)
	require.True(t, st.UpsertEmbedding(otherID, "test", []float32{0, 1, 0}))

	emb := &fixedEmbedder{vec: []float32{1, 0, 0}}
	eng := NewEngine(st, emb, nil, &config.Config{})

	// No keyword match; semantic similarity alone surfaces both, the
	// aligned vector first.
	results := eng.Search(context.Background(), "seaside holiday", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "beach.jpg", results[0].Name)
	assert.Greater(t, results[0].Rank, results[1].Rank)
}

func TestSearchSkipsMismatchedDimensions(t *testing.T) {
	st := openTestStore(t)

	rec := store.FileRecord{Path: "/tmp/a.txt", Name: "a.txt"}
	id, ok := st.Upsert(rec)
	require.True(t, ok)
	require.True(t, st.UpsertEmbedding(id, "test", []float32{1, 0}))

	emb := &fixedEmbedder{vec: []float32{1, 0, 0}}
	eng := NewEngine(st, emb, nil, &config.Config{})

	results := eng.Search(context.Background(), "nothing matches", 10)
	assert.Empty(t, results)
}

func TestOCRPreviewTruncation(t *testing.T) {
	st := openTestStore(t)
	eng := newTestEngine(t, st)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	r := eng.enrichResult(store.SearchResult{
		FileRecord: store.FileRecord{OCRText: string(long)},
	})
	assert.Len(t, r.OCRPreview, ocrPreviewLen+3)
	assert.Equal(t, "...", r.OCRPreview[ocrPreviewLen:])
}

func TestOCRPreviewKeepsRunesWhole(t *testing.T) {
	st := openTestStore(t)
	eng := newTestEngine(t, st)

	// Each rune is 3 bytes; a byte-index cut would split one.
	r := eng.enrichResult(store.SearchResult{
		FileRecord: store.FileRecord{OCRText: strings.Repeat("領", 300)},
	})
	assert.True(t, utf8.ValidString(r.OCRPreview))
	assert.Equal(t, ocrPreviewLen, utf8.RuneCountInString(r.OCRPreview)-3)
	assert.True(t, strings.HasSuffix(r.OCRPreview, "..."))
}

func TestSuggestions(t *testing.T) {
	st := openTestStore(t)
	eng := newTestEngine(t, st)

	st.LogSearch("vacation photos", 3)
	st.LogSearch("tax invoice", 1)
	st.LogSearch("vacation photos", 5)
	st.LogSearch("Vacation Plans", 0)

	got := eng.Suggestions("vacation", 10)
	assert.Equal(t, []string{"Vacation Plans", "vacation photos"}, got)

	assert.Empty(t, eng.Suggestions("zzz", 10))
}

func TestSearchByDateRange(t *testing.T) {
	st := openTestStore(t)
	eng := newTestEngine(t, st)

	recs := []store.FileRecord{
		{Path: "/tmp/old.txt", Name: "old.txt", Modified: "2025-01-15T00:00:00Z"},
		{Path: "/tmp/mid.txt", Name: "mid.txt", Modified: "2026-03-10T00:00:00Z"},
		{Path: "/tmp/new.txt", Name: "new.txt", Modified: "2026-08-01T00:00:00Z"},
	}
	for _, r := range recs {
		_, ok := st.Upsert(r)
		require.True(t, ok)
	}

	results := eng.SearchByDateRange("2026-01-01T00:00:00Z", "2026-06-30T23:59:59Z", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "mid.txt", results[0].Name)
}

func TestSearchByCategory(t *testing.T) {
	st := openTestStore(t)
	eng := newTestEngine(t, st)

	_, ok := st.Upsert(store.FileRecord{Path: "/tmp/doc.pdf", Name: "doc.pdf", Category: "Documents/PDFs"})
	require.True(t, ok)
	_, ok = st.Upsert(store.FileRecord{Path: "/tmp/pic.jpg", Name: "pic.jpg", Category: "Images/Photos"})
	require.True(t, ok)

	results := eng.SearchByCategory("Documents/PDFs", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "doc.pdf", results[0].Name)
}

func TestFileDetailsAndFieldUpdate(t *testing.T) {
	st := openTestStore(t)
	eng := newTestEngine(t, st)

	id, ok := st.Upsert(store.FileRecord{Path: "/tmp/pic.png", Name: "pic.png", Size: 100})
	require.True(t, ok)

	require.True(t, eng.UpdateFileField(id, store.FieldLabel, "diagram"))
	assert.False(t, eng.UpdateFileField(id, store.EditableField("file_size"), 1))

	details := eng.FileDetails("/tmp/pic.png")
	require.NotNil(t, details)
	assert.Equal(t, "diagram", details.Label)
	assert.Equal(t, "100 B", details.SizeFormatted)

	assert.Nil(t, eng.FileDetails("/tmp/absent.png"))
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in  int64
		out string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{3565158, "3.4 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.out, FormatSize(tc.in), "size %d", tc.in)
	}
}

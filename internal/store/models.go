package store

// FileRecord is the canonical stored representation of one indexed
// file. Path is the natural key; re-indexing the same path updates the
// existing row.
type FileRecord struct {
	ID        int64
	Path      string
	Name      string
	Extension string
	Size      int64
	MimeType  string
	Category  string
	Created   string // ISO-8601
	Modified  string // ISO-8601
	Indexed   string // ISO-8601

	HasOCR  bool
	OCRText string

	// AI-derived fields, fully replaced on every re-index.
	Label            string
	Tags             []string
	Caption          string
	VisionConfidence *float64
	AISource         string

	ContentHash   string // SHA-256 of file bytes, hex
	LastIndexedAt string // ISO-8601

	// User-editable fields, changed only via explicit UpdateField calls.
	UserTags []string
	Metadata map[string]any
}

// HasVision reports whether any vision enrichment reached this record.
func (r *FileRecord) HasVision() bool {
	return r.Label != "" || r.Caption != ""
}

// SearchResult is a file record with its relevance rank. Higher is
// better; the scale depends on the search path that produced it.
type SearchResult struct {
	FileRecord
	Rank float64
}

// Filters narrow an advanced search's candidate set.
type Filters struct {
	Label     string   // exact-or-substring label match
	HasOCR    bool     // only records with OCR text
	HasVision bool     // only records with a label or caption
	Tags      []string // every tag must appear (AND semantics)
}

// Embedding is one stored vector per file for the current model.
type Embedding struct {
	FileID    int64
	Model     string
	Dim       int
	Vector    []float32
	UpdatedAt string
}

// HistoryEntry is one append-only search log row.
type HistoryEntry struct {
	Query       string
	Timestamp   string
	ResultCount int
}

// Statistics aggregates index-wide counts.
type Statistics struct {
	TotalFiles   int64
	FilesWithOCR int64
	TotalSize    int64
	Categories   map[string]int64
}

// EditableField is the closed set of fields a front end may change
// without a re-scan. Anything outside this set is rejected, not
// errored: the permission boundary is silent.
type EditableField string

const (
	FieldLabel    EditableField = "label"
	FieldCaption  EditableField = "caption"
	FieldTags     EditableField = "tags"
	FieldUserTags EditableField = "user_tags"
	FieldMetadata EditableField = "metadata"
)

// editableColumns maps each editable field to its column and whether
// changing it requires rewriting the shadow index entry.
var editableColumns = map[EditableField]struct {
	column     string
	touchesFTS bool
}{
	FieldLabel:    {"label", false},
	FieldCaption:  {"caption", true},
	FieldTags:     {"tags", true},
	FieldUserTags: {"user_tags", false},
	FieldMetadata: {"metadata", false},
}

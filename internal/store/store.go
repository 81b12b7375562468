// Package store persists file records, their text-search shadow index,
// embeddings, and the search history in a single SQLite database.
//
// Every operation besides Open and Close degrades instead of failing:
// unexpected errors are logged and reported as empty results or a false
// flag, never propagated. Callers treat "no results" as possibly
// meaning "search subsystem degraded".
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Store is the persistence boundary for the pipeline and query engine.
type Store interface {
	// Upsert inserts or replaces a file record by path, rewriting its
	// shadow index entry in the same transaction. Returns the row ID
	// and whether the write succeeded.
	Upsert(rec FileRecord) (int64, bool)
	// UpdateField narrowly mutates one user-editable field. Fields
	// outside the editable set return false without logging an error.
	UpdateField(id int64, field EditableField, value any) bool
	// SearchText is ranked full-text search with a substring fallback
	// for queries that break the FTS grammar.
	SearchText(query string, limit int) []SearchResult
	// SearchAdvanced ORs prefix terms and narrows by filters, falling
	// back to a substring scan when the shadow index yields nothing.
	SearchAdvanced(terms []string, f Filters, limit int) []SearchResult
	// GetByPath returns the record for a path, or nil.
	GetByPath(path string) *FileRecord
	// GetByIDs batch-fetches records; unknown IDs are omitted.
	GetByIDs(ids []int64) []FileRecord
	// UpsertEmbedding replaces the stored vector for a file.
	UpsertEmbedding(fileID int64, model string, vector []float32) bool
	// GetAllEmbeddings returns every stored embedding.
	GetAllEmbeddings() []Embedding
	// GetContentHash returns the stored hash for a path, or "".
	GetContentHash(path string) string
	// Statistics aggregates index-wide counts.
	Statistics() Statistics
	// LogSearch appends one search-history entry.
	LogSearch(query string, resultCount int)
	// SearchHistory returns recent entries, most recent first.
	SearchHistory(limit int) []HistoryEntry
	// ClearIndex deletes all records and shadow entries. Embeddings
	// cascade away; search history is untouched.
	ClearIndex() bool
	// RebuildFTS recreates the shadow index from canonical rows.
	RebuildFTS() bool
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite with an FTS5 shadow
// index.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at dbPath and initializes the
// schema, applying additive migrations to older databases.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// fileColumns is the canonical column order used by every SELECT that
// feeds scanRecord.
const fileColumns = `id, file_path, file_name, file_extension, file_size,
	mime_type, category, created_date, modified_date, indexed_date,
	has_ocr, ocr_text, label, tags, caption, vision_confidence,
	content_hash, last_indexed_at, ai_source, user_tags, metadata`

func (s *SQLiteStore) Upsert(rec FileRecord) (int64, bool) {
	if rec.Indexed == "" {
		rec.Indexed = time.Now().Format(time.RFC3339)
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("upsert begin", "path", rec.Path, "error", err)
		return 0, false
	}
	defer tx.Rollback()

	// User-editable fields are deliberately left out of the conflict
	// update so re-indexing never clobbers manual edits.
	_, err = tx.Exec(`
		INSERT INTO files (
			file_path, file_name, file_extension, file_size, mime_type,
			category, created_date, modified_date, indexed_date,
			has_ocr, ocr_text, label, tags, caption, vision_confidence,
			content_hash, last_indexed_at, ai_source, user_tags, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_name = excluded.file_name,
			file_extension = excluded.file_extension,
			file_size = excluded.file_size,
			mime_type = excluded.mime_type,
			category = excluded.category,
			created_date = excluded.created_date,
			modified_date = excluded.modified_date,
			indexed_date = excluded.indexed_date,
			has_ocr = excluded.has_ocr,
			ocr_text = excluded.ocr_text,
			label = excluded.label,
			tags = excluded.tags,
			caption = excluded.caption,
			vision_confidence = excluded.vision_confidence,
			content_hash = excluded.content_hash,
			last_indexed_at = excluded.last_indexed_at,
			ai_source = excluded.ai_source,
			metadata = excluded.metadata`,
		rec.Path, rec.Name, rec.Extension, rec.Size, rec.MimeType,
		rec.Category, rec.Created, rec.Modified, rec.Indexed,
		rec.HasOCR, nullString(rec.OCRText), nullString(rec.Label),
		encodeList(rec.Tags), nullString(rec.Caption), rec.VisionConfidence,
		nullString(rec.ContentHash), nullString(rec.LastIndexedAt),
		nullString(rec.AISource), encodeList(rec.UserTags), encodeMap(rec.Metadata),
	)
	if err != nil {
		s.logger.Error("upsert file", "path", rec.Path, "error", err)
		return 0, false
	}

	var id int64
	if err := tx.QueryRow("SELECT id FROM files WHERE file_path = ?", rec.Path).Scan(&id); err != nil {
		s.logger.Error("upsert id lookup", "path", rec.Path, "error", err)
		return 0, false
	}

	if err := refreshFTS(tx, id); err != nil {
		s.logger.Error("upsert fts refresh", "path", rec.Path, "error", err)
		return 0, false
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("upsert commit", "path", rec.Path, "error", err)
		return 0, false
	}
	return id, true
}

// refreshFTS rewrites the shadow index row for one file from its
// canonical columns, inside the caller's transaction.
func refreshFTS(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec("DELETE FROM files_fts WHERE rowid = ?", id); err != nil {
		return err
	}
	_, err := tx.Exec(`
		INSERT INTO files_fts (rowid, file_name, file_path, category, ocr_text, caption, tags)
		SELECT id, file_name, file_path, category,
		       COALESCE(ocr_text, ''), COALESCE(caption, ''), COALESCE(tags, '')
		FROM files WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) UpdateField(id int64, field EditableField, value any) bool {
	col, ok := editableColumns[field]
	if !ok {
		return false
	}

	var stored any
	switch v := value.(type) {
	case nil:
		stored = nil
	case string:
		stored = v
	case []string:
		stored = encodeList(v)
	case map[string]any:
		stored = encodeMap(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("update field encode", "field", field, "error", err)
			return false
		}
		stored = string(raw)
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("update field begin", "field", field, "error", err)
		return false
	}
	defer tx.Rollback()

	res, err := tx.Exec(fmt.Sprintf("UPDATE files SET %s = ? WHERE id = ?", col.column), stored, id)
	if err != nil {
		s.logger.Error("update field", "field", field, "id", id, "error", err)
		return false
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false
	}

	if col.touchesFTS {
		if err := refreshFTS(tx, id); err != nil {
			s.logger.Error("update field fts refresh", "field", field, "id", id, "error", err)
			return false
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("update field commit", "field", field, "id", id, "error", err)
		return false
	}
	return true
}

func (s *SQLiteStore) SearchText(query string, limit int) []SearchResult {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s, bm25(files_fts) AS score
		FROM files f JOIN files_fts ON f.id = files_fts.rowid
		WHERE files_fts MATCH ?
		ORDER BY score ASC
		LIMIT ?`, prefixColumns("f")), query, limit)
	if err != nil {
		// The FTS grammar rejects plenty of user input (a lone quote,
		// bare punctuation). Degrade to a substring scan.
		return s.substringScan([]string{query}, Filters{}, limit)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, score, err := scanRecordWithScore(rows)
		if err != nil {
			s.logger.Warn("search text row skipped", "error", err)
			continue
		}
		// bm25 scores are lower-is-better; expose descending rank.
		results = append(results, SearchResult{FileRecord: rec, Rank: -score})
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("search text", "query", query, "error", err)
	}
	return results
}

func (s *SQLiteStore) SearchAdvanced(terms []string, f Filters, limit int) []SearchResult {
	results := s.ftsAdvanced(terms, f, limit)
	if len(results) == 0 {
		// Either no FTS hits or the shadow index path failed; scan the
		// canonical columns directly with the same filters applied.
		return s.substringScan(terms, f, limit)
	}
	return results
}

func (s *SQLiteStore) ftsAdvanced(terms []string, f Filters, limit int) []SearchResult {
	var sb strings.Builder
	var params []any
	prefix := ""

	if len(terms) > 0 {
		// Prefix-match each token, OR'd to broaden matches. bm25 is
		// only defined inside a MATCH, hence the two query shapes.
		tokens := make([]string, len(terms))
		for i, t := range terms {
			tokens[i] = fmt.Sprintf("%q*", t)
		}
		fmt.Fprintf(&sb,
			"SELECT %s, bm25(files_fts) AS score FROM files f JOIN files_fts ON f.id = files_fts.rowid WHERE files_fts MATCH ?",
			prefixColumns("f"))
		params = append(params, strings.Join(tokens, " OR "))
		prefix = "f."
	} else {
		fmt.Fprintf(&sb, "SELECT %s, 0.0 AS score FROM files WHERE 1=1", fileColumns)
	}

	appendFilterSQL(&sb, &params, f, prefix)
	fmt.Fprintf(&sb, " ORDER BY score ASC, %sfile_name LIMIT ?", prefix)
	params = append(params, limit)

	rows, err := s.db.Query(sb.String(), params...)
	if err != nil {
		s.logger.Warn("advanced fts query failed", "error", err)
		return nil
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, score, err := scanRecordWithScore(rows)
		if err != nil {
			s.logger.Warn("advanced search row skipped", "error", err)
			continue
		}
		results = append(results, SearchResult{FileRecord: rec, Rank: -score})
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("advanced fts rows", "error", err)
	}
	return results
}

// substringScan is the last line of defense: a LIKE match over the
// canonical columns, unranked, ordered by name for stability.
func (s *SQLiteStore) substringScan(terms []string, f Filters, limit int) []SearchResult {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM files WHERE 1=1", fileColumns)
	var params []any

	if len(terms) > 0 {
		var clauses []string
		for _, t := range terms {
			pattern := "%" + t + "%"
			clauses = append(clauses,
				"file_name LIKE ?", "category LIKE ?", "ocr_text LIKE ?",
				"caption LIKE ?", "tags LIKE ?")
			params = append(params, pattern, pattern, pattern, pattern, pattern)
		}
		sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}

	appendFilterSQL(&sb, &params, f, "")
	sb.WriteString(" ORDER BY file_name LIMIT ?")
	params = append(params, limit)

	rows, err := s.db.Query(sb.String(), params...)
	if err != nil {
		s.logger.Error("substring scan", "error", err)
		return nil
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("substring scan row skipped", "error", err)
			continue
		}
		results = append(results, SearchResult{FileRecord: rec, Rank: 0})
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("substring scan rows", "error", err)
	}
	return results
}

// appendFilterSQL adds the shared filter clauses. prefix is "f." when
// the files table is aliased.
func appendFilterSQL(sb *strings.Builder, params *[]any, f Filters, prefix string) {
	if f.Label != "" {
		fmt.Fprintf(sb, " AND (%slabel = ? OR %slabel LIKE ?)", prefix, prefix)
		*params = append(*params, f.Label, "%"+f.Label+"%")
	}
	if f.HasOCR {
		fmt.Fprintf(sb, " AND %shas_ocr = 1", prefix)
	}
	if f.HasVision {
		fmt.Fprintf(sb, " AND (%slabel IS NOT NULL OR %scaption IS NOT NULL)", prefix, prefix)
	}
	for _, tag := range f.Tags {
		fmt.Fprintf(sb, " AND %stags LIKE ?", prefix)
		*params = append(*params, "%"+tag+"%")
	}
}

func (s *SQLiteStore) GetByPath(path string) *FileRecord {
	row := s.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM files WHERE file_path = ?", fileColumns), path)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		s.logger.Error("get by path", "path", path, "error", err)
		return nil
	}
	return &rec
}

func (s *SQLiteStore) GetByIDs(ids []int64) []FileRecord {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = id
	}

	rows, err := s.db.Query(
		fmt.Sprintf("SELECT %s FROM files WHERE id IN (%s)", fileColumns, placeholders), params...)
	if err != nil {
		s.logger.Error("get by ids", "error", err)
		return nil
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("get by ids row skipped", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *SQLiteStore) UpsertEmbedding(fileID int64, model string, vector []float32) bool {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		s.logger.Error("serialize embedding", "file_id", fileID, "error", err)
		return false
	}
	_, err = s.db.Exec(`
		INSERT INTO embeddings (file_id, model, dim, vector, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			model = excluded.model,
			dim = excluded.dim,
			vector = excluded.vector,
			updated_at = excluded.updated_at`,
		fileID, model, len(vector), blob, time.Now().Format(time.RFC3339))
	if err != nil {
		s.logger.Error("upsert embedding", "file_id", fileID, "error", err)
		return false
	}
	return true
}

func (s *SQLiteStore) GetAllEmbeddings() []Embedding {
	rows, err := s.db.Query("SELECT file_id, model, dim, vector, updated_at FROM embeddings")
	if err != nil {
		s.logger.Error("get embeddings", "error", err)
		return nil
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var (
			e    Embedding
			blob []byte
		)
		if err := rows.Scan(&e.FileID, &e.Model, &e.Dim, &blob, &e.UpdatedAt); err != nil {
			s.logger.Warn("embedding row skipped", "error", err)
			continue
		}
		e.Vector = decodeVector(blob)
		out = append(out, e)
	}
	return out
}

func (s *SQLiteStore) GetContentHash(path string) string {
	var hash sql.NullString
	err := s.db.QueryRow("SELECT content_hash FROM files WHERE file_path = ?", path).Scan(&hash)
	if err != nil {
		return ""
	}
	return hash.String
}

func (s *SQLiteStore) Statistics() Statistics {
	stats := Statistics{Categories: make(map[string]int64)}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&stats.TotalFiles); err != nil {
		s.logger.Error("statistics", "error", err)
		return stats
	}
	_ = s.db.QueryRow("SELECT COUNT(*) FROM files WHERE has_ocr = 1").Scan(&stats.FilesWithOCR)
	_ = s.db.QueryRow("SELECT COALESCE(SUM(file_size), 0) FROM files").Scan(&stats.TotalSize)

	rows, err := s.db.Query("SELECT category, COUNT(*) FROM files GROUP BY category")
	if err != nil {
		s.logger.Error("statistics categories", "error", err)
		return stats
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat string
			n   int64
		)
		if err := rows.Scan(&cat, &n); err != nil {
			continue
		}
		stats.Categories[cat] = n
	}
	return stats
}

func (s *SQLiteStore) LogSearch(query string, resultCount int) {
	_, err := s.db.Exec(
		"INSERT INTO search_history (query, timestamp, results_count) VALUES (?, ?, ?)",
		query, time.Now().Format(time.RFC3339), resultCount)
	if err != nil {
		s.logger.Error("log search", "error", err)
	}
}

func (s *SQLiteStore) SearchHistory(limit int) []HistoryEntry {
	rows, err := s.db.Query(
		"SELECT query, timestamp, results_count FROM search_history ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		s.logger.Error("search history", "error", err)
		return nil
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Query, &h.Timestamp, &h.ResultCount); err != nil {
			continue
		}
		out = append(out, h)
	}
	return out
}

func (s *SQLiteStore) ClearIndex() bool {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("clear index begin", "error", err)
		return false
	}
	defer tx.Rollback()

	// Embeddings cascade away with their file rows; history stays.
	if _, err := tx.Exec("DELETE FROM files"); err != nil {
		s.logger.Error("clear files", "error", err)
		return false
	}
	if _, err := tx.Exec("DELETE FROM files_fts"); err != nil {
		s.logger.Error("clear fts", "error", err)
		return false
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("clear index commit", "error", err)
		return false
	}
	s.logger.Info("file index cleared")
	return true
}

func (s *SQLiteStore) RebuildFTS() bool {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("rebuild fts begin", "error", err)
		return false
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM files_fts"); err != nil {
		s.logger.Error("rebuild fts clear", "error", err)
		return false
	}
	_, err = tx.Exec(`
		INSERT INTO files_fts (rowid, file_name, file_path, category, ocr_text, caption, tags)
		SELECT id, file_name, file_path, category,
		       COALESCE(ocr_text, ''), COALESCE(caption, ''), COALESCE(tags, '')
		FROM files`)
	if err != nil {
		s.logger.Error("rebuild fts insert", "error", err)
		return false
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("rebuild fts commit", "error", err)
		return false
	}
	return true
}

// --- row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (FileRecord, error) {
	var (
		rec                             FileRecord
		ocrText, label, tags, caption   sql.NullString
		hash, lastIndexed, aiSource     sql.NullString
		userTags, metadata              sql.NullString
		confidence                      sql.NullFloat64
	)
	err := row.Scan(
		&rec.ID, &rec.Path, &rec.Name, &rec.Extension, &rec.Size,
		&rec.MimeType, &rec.Category, &rec.Created, &rec.Modified, &rec.Indexed,
		&rec.HasOCR, &ocrText, &label, &tags, &caption, &confidence,
		&hash, &lastIndexed, &aiSource, &userTags, &metadata,
	)
	if err != nil {
		return rec, err
	}
	rec.OCRText = ocrText.String
	rec.Label = label.String
	rec.Tags = decodeList(tags.String)
	rec.Caption = caption.String
	if confidence.Valid {
		v := confidence.Float64
		rec.VisionConfidence = &v
	}
	rec.ContentHash = hash.String
	rec.LastIndexedAt = lastIndexed.String
	rec.AISource = aiSource.String
	rec.UserTags = decodeList(userTags.String)
	rec.Metadata = decodeMap(metadata.String)
	return rec, nil
}

func scanRecordWithScore(rows *sql.Rows) (FileRecord, float64, error) {
	var (
		rec                             FileRecord
		ocrText, label, tags, caption   sql.NullString
		hash, lastIndexed, aiSource     sql.NullString
		userTags, metadata              sql.NullString
		confidence                      sql.NullFloat64
		score                           float64
	)
	err := rows.Scan(
		&rec.ID, &rec.Path, &rec.Name, &rec.Extension, &rec.Size,
		&rec.MimeType, &rec.Category, &rec.Created, &rec.Modified, &rec.Indexed,
		&rec.HasOCR, &ocrText, &label, &tags, &caption, &confidence,
		&hash, &lastIndexed, &aiSource, &userTags, &metadata, &score,
	)
	if err != nil {
		return rec, 0, err
	}
	rec.OCRText = ocrText.String
	rec.Label = label.String
	rec.Tags = decodeList(tags.String)
	rec.Caption = caption.String
	if confidence.Valid {
		v := confidence.Float64
		rec.VisionConfidence = &v
	}
	rec.ContentHash = hash.String
	rec.LastIndexedAt = lastIndexed.String
	rec.AISource = aiSource.String
	rec.UserTags = decodeList(userTags.String)
	rec.Metadata = decodeMap(metadata.String)
	return rec, score, nil
}

// prefixColumns qualifies fileColumns with a table alias.
func prefixColumns(alias string) string {
	cols := strings.Split(fileColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// --- serialization helpers ---

// encodeList serializes an ordered string list to JSON text, or NULL
// for an empty list.
func encodeList(items []string) any {
	if len(items) == 0 {
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(raw)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// Legacy rows may hold a bare comma-joined string.
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return items
}

func encodeMap(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(raw)
}

func decodeMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// decodeVector reads a little-endian float32 blob back into a vector.
// The blob layout matches sqlite_vec.SerializeFloat32.
func decodeVector(blob []byte) []float32 {
	if len(blob) < 4 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

package scan

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OCRFunc extracts text from a file (image or PDF). Implementations
// are external to this package; a nil OCRFunc disables OCR entirely.
type OCRFunc func(path string) (string, error)

// FileMeta is the base metadata derived for one discovered file.
type FileMeta struct {
	Path      string
	Name      string
	Extension string
	Size      int64
	MimeType  string
	Category  string
	Created   string // ISO-8601
	Modified  string // ISO-8601
	IsFile    bool
	IsDir     bool
	HasOCR    bool
	OCRText   string
	Error     string
}

// visualExtensions are the file types handed to OCR and the vision
// models.
var visualExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".tiff": true, ".tif": true, ".gif": true, ".pdf": true,
}

// IsVisual reports whether a file is routed through the vision
// enrichment path rather than text classification.
func IsVisual(ext string) bool {
	return visualExtensions[strings.ToLower(ext)]
}

// Metadata derives base attributes for a path. It never fails hard:
// a file that cannot be stat'd is reported as a Misc record with the
// Error field set, so one bad entry can't poison a batch.
func Metadata(path string, ocr OCRFunc) FileMeta {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	m := FileMeta{
		Path:      path,
		Name:      name,
		Extension: ext,
		MimeType:  MimeType(name),
		Category:  CategoryMisc,
	}

	info, err := os.Stat(path)
	if err != nil {
		m.Error = err.Error()
		return m
	}

	m.IsFile = info.Mode().IsRegular()
	m.IsDir = info.IsDir()
	m.Size = info.Size()
	m.Modified = info.ModTime().Format(time.RFC3339)
	m.Created = createdTime(info).Format(time.RFC3339)
	m.Category = Categorize(name, m.MimeType)

	if ocr != nil && visualExtensions[ext] {
		text, err := ocr(path)
		if err == nil {
			m.OCRText = text
		}
	}
	m.HasOCR = m.OCRText != ""

	return m
}

// createdTime approximates the creation timestamp. File birth time is
// not portable, so the modification time stands in for it.
func createdTime(info os.FileInfo) time.Time {
	return info.ModTime()
}

package scan

import (
	"mime"
	"path/filepath"
	"strings"
)

// categoryByExt maps lowercase extensions to fixed category labels.
var categoryByExt = map[string]string{
	".pdf":  "Documents/PDFs",
	".doc":  "Documents/Word",
	".docx": "Documents/Word",
	".rtf":  "Documents/Word",
	".txt":  "Documents/Text",
	".md":   "Documents/Text",
	".xls":  "Spreadsheets",
	".xlsx": "Spreadsheets",
	".csv":  "Spreadsheets",
	".ppt":  "Presentations",
	".pptx": "Presentations",
	".jpg":  "Images/Photos",
	".jpeg": "Images/Photos",
	".png":  "Images/Screenshots",
	".gif":  "Images/Graphics",
	".svg":  "Images/Graphics",
	".webp": "Images/Graphics",
	".mp4":  "Videos",
	".mov":  "Videos",
	".mp3":  "Audio/Music",
	".wav":  "Audio/Recordings",
	".m4a":  "Audio/Recordings",
	".zip":  "Archives",
	".rar":  "Archives",
	".7z":   "Archives",
	".py":   "Code",
	".js":   "Code",
	".ts":   "Code",
	".go":   "Code",
}

// mimePrefixCategories resolve files whose extension is unknown.
var mimePrefixCategories = []struct {
	prefix   string
	category string
}{
	{"application/pdf", "Documents/PDFs"},
	{"image/", "Images/Photos"},
	{"video/", "Videos"},
	{"audio/", "Audio/Recordings"},
	{"text/", "Documents/Text"},
}

// CategoryMisc is the catch-all category for unrecognized files.
const CategoryMisc = "Misc"

// Categorize maps a file name to its category. The extension wins;
// the MIME type (derived from the extension when not supplied) is the
// fallback; anything else is Misc.
func Categorize(name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if cat, ok := categoryByExt[ext]; ok {
		return cat
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
	}
	for _, m := range mimePrefixCategories {
		if strings.HasPrefix(mimeType, m.prefix) {
			return m.category
		}
	}
	return CategoryMisc
}

// MimeType returns the MIME type for a file name, or an empty string
// when the extension is not registered.
func MimeType(name string) string {
	full := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	// Strip optional parameters such as "; charset=utf-8".
	if i := strings.Index(full, ";"); i >= 0 {
		full = full[:i]
	}
	return strings.TrimSpace(full)
}

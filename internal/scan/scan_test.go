package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content"), 0o644))
}

func TestShouldSkip(t *testing.T) {
	cases := []struct {
		name string
		skip bool
	}{
		{"report.pdf", false},
		{"photo.JPG", false},
		{".hidden", true},
		{".DS_Store", true},
		{"Thumbs.db", true},
		{"desktop.ini", true},
		{"Icon\r", true},
		{"draft.tmp", true},
		{"backup.BAK", true},
		{"edit.swp", true},
		{"notes.txt", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.skip, ShouldSkip(tc.name), "name %q", tc.name)
	}
}

func TestScanAppliesSkipRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt")
	writeFile(t, dir, "keep.pdf")
	writeFile(t, dir, ".hidden")
	writeFile(t, dir, "Thumbs.db")
	writeFile(t, dir, "junk.tmp")

	files, truncated, err := Scan(dir, true, 100, nil, nil)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	assert.ElementsMatch(t, []string{"keep.txt", "keep.pdf"}, names)
}

func TestScanRecursionToggle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.txt")
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "nested.txt")

	t.Run("recursive", func(t *testing.T) {
		files, _, err := Scan(dir, true, 100, nil, nil)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("flat", func(t *testing.T) {
		files, _, err := Scan(dir, false, 100, nil, nil)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "top.txt", files[0].Name)
	})
}

func TestScanCeilingTruncates(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		writeFile(t, dir, n)
	}

	files, truncated, err := Scan(dir, true, 3, nil, nil)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, files, 3)
}

func TestScanBadRoot(t *testing.T) {
	_, _, err := Scan(filepath.Join(t.TempDir(), "missing"), true, 10, nil, nil)
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "file.txt")
	_, _, err = Scan(filepath.Join(dir, "file.txt"), true, 10, nil, nil)
	assert.Error(t, err, "a file root is not scannable")
}

func TestScanCollectsOCR(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "photo.jpg")
	writeFile(t, dir, "notes.txt")

	ocr := func(path string) (string, error) {
		return "extracted words", nil
	}

	files, _, err := Scan(dir, true, 10, ocr, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, f := range files {
		if f.Name == "photo.jpg" {
			assert.True(t, f.HasOCR)
			assert.Equal(t, "extracted words", f.OCRText)
		} else {
			assert.False(t, f.HasOCR, "OCR only runs on visual files")
		}
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		name     string
		mime     string
		category string
	}{
		{"document.pdf", "", "Documents/PDFs"},
		{"image.jpg", "", "Images/Photos"},
		{"shot.png", "", "Images/Screenshots"},
		{"script.py", "", "Code"},
		{"app.ts", "", "Code"},
		{"readme.md", "", "Documents/Text"},
		{"song.mp3", "", "Audio/Music"},
		{"archive.zip", "", "Archives"},
		{"unknown.xyz", "", "Misc"},
		{"noext", "image/tiff", "Images/Photos"},
		{"noext", "video/x-matroska", "Videos"},
		{"noext", "application/octet-stream", "Misc"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.category, Categorize(tc.name, tc.mime), "%s (%s)", tc.name, tc.mime)
	}
}

func TestMimeTypeStripsParameters(t *testing.T) {
	assert.Equal(t, "text/plain", MimeType("notes.txt"))
	assert.Equal(t, "", MimeType("unknown.xyz"))
}

func TestMetadataSurvivesStatFailure(t *testing.T) {
	meta := Metadata(filepath.Join(t.TempDir(), "gone.pdf"), nil)
	assert.Equal(t, "gone.pdf", meta.Name)
	assert.NotEmpty(t, meta.Error)
	assert.Equal(t, CategoryMisc, meta.Category)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt")
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "two.txt")

	st, err := Stats(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalFiles)
	assert.Equal(t, 1, st.TotalDirs)
	assert.Equal(t, int64(14), st.TotalSize)
}

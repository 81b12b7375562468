package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedModel)
	assert.Equal(t, "llama3.2-vision", cfg.VisionModel)
	assert.Equal(t, "moondream", cfg.VisionModelSmall)
	assert.Equal(t, "llama3.2:1b", cfg.TextModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 1000, cfg.MaxScanFiles)
	assert.False(t, cfg.UseOpenAIOnly)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FILEDEX_DB", "/custom/index.db")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("FILEDEX_OPENAI_ONLY", "true")
	t.Setenv("FILEDEX_OPENAI_RERANK", "1")
	t.Setenv("FILEDEX_MAX_SCAN_FILES", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/custom/index.db", cfg.DBPath)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaURL)
	assert.True(t, cfg.UseOpenAIOnly)
	assert.True(t, cfg.UseOpenAIRerank)
	assert.Equal(t, 250, cfg.MaxScanFiles)
}

func TestLoadRejectsBadCeiling(t *testing.T) {
	t.Setenv("FILEDEX_MAX_SCAN_FILES", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxScanFiles, "unparseable ceiling keeps the default")

	t.Setenv("FILEDEX_MAX_SCAN_FILES", "-5")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxScanFiles, "non-positive ceiling keeps the default")
}

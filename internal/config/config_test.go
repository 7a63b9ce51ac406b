package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "rus+eng", cfg.OCR.Languages)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, 0.25, cfg.Query.MinScore)
	assert.Equal(t, "cosine", cfg.Index.Metric)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[source]
dir = "/srv/docs"

[chunking]
size = 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/docs", cfg.Source.Dir)
	assert.Equal(t, 500, cfg.Chunking.Size)
	// Untouched sections keep their defaults.
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 5, cfg.Query.TopK)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "overlap not below size",
			content: `
[chunking]
size = 100
overlap = 100
`,
		},
		{
			name: "unknown provider",
			content: `
[embedding]
provider = "acme"
`,
		},
		{
			name: "unknown metric",
			content: `
[index]
metric = "euclidean"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Source.Dir = "/data/in"
	cfg.Query.TopK = 10
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/in", loaded.Source.Dir)
	assert.Equal(t, 10, loaded.Query.TopK)
}

func TestAPIKeyReadsEnvironment(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKeyEnv = "CORPUS_TEST_KEY"
	t.Setenv("CORPUS_TEST_KEY", "sk-test")

	assert.Equal(t, "sk-test", cfg.APIKey())

	cfg.Embedding.APIKeyEnv = ""
	assert.Empty(t, cfg.APIKey())
}

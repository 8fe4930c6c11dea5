package scraper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultSource(t *testing.T) {
	src := DefaultSource()
	assert.Equal(t, "RKB毎日放送", src.Name)
	assert.Len(t, src.ListingURLs, 3)
	assert.Equal(t, "article.m-article-row", src.Selectors.Item)
}

func TestLoadSources(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: Example News
    base_url: https://news.example.jp
    listing_urls:
      - https://news.example.jp/latest
    selectors:
      item: li.news
      body: "#main"
`)

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	src := sources[0]
	assert.Equal(t, "Example News", src.Name)
	assert.Equal(t, "li.news", src.Selectors.Item)
	assert.Equal(t, "#main", src.Selectors.Body)
	// Unset selectors inherit the defaults.
	assert.Equal(t, "h3.m-article-content__title", src.Selectors.Title)
	assert.Equal(t, ".insert_ads", src.Selectors.Ads)
}

func TestLoadSources_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"empty", "sources: []\n", "no sources"},
		{"missing listing", "sources:\n  - name: x\n    base_url: https://x.example\n", "required"},
		{"malformed", "sources: [\n", "parse sources file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSources(writeSources(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadSources_MissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

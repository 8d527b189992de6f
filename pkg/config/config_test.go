package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
output_base_dir: /data/nips
year_delay: 2s
detail_workers: 4
resume_signal: marker
site:
  first_year: 1987
  abstract_selector: div.abstract p
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/nips", cfg.OutputBaseDir)
	assert.Equal(t, 2*time.Second, cfg.YearDelay)
	assert.Equal(t, 4, cfg.DetailWorkers)
	assert.Equal(t, ResumeMarker, cfg.ResumeSignal)
	assert.Equal(t, 1987, cfg.Site.FirstYear)
	assert.Equal(t, "div.abstract p", cfg.Site.AbstractSelector)

	// Untouched fields keep their defaults
	assert.Equal(t, "http://papers.nips.cc", cfg.Site.BaseURL)
	assert.Equal(t, "li.author", cfg.Site.AuthorSelector)
	assert.Equal(t, "papers_data.jsons", cfg.Site.RecordsFilename)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site: [unclosed"), 0644))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvOutput:    "/env/out",
		EnvUserAgent: "  ",
		EnvStateDir:  "/env/state",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "/env/out", cfg.OutputBaseDir)
	assert.Equal(t, "/env/state", cfg.StateDir)
	assert.Equal(t, "conf-crawler/1.0", cfg.UserAgent, "blank values are ignored")
}

func TestDefaultStateDir(t *testing.T) {
	dir := DefaultStateDir()
	assert.Equal(t, "conf-crawler", filepath.Base(dir))
	assert.True(t, filepath.IsAbs(dir))
}

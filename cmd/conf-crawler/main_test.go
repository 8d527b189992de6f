package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/parse"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fakeArchive serves a single year (2000) with one complete paper
func fakeArchive(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/book/proceedings-13-2000", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><a href="/paper/7-a-paper">A Paper</a></body></html>`)
	})
	mux.HandleFunc("/paper/7-a-paper", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p class="abstract">Text.</p><ul><li class="author"><a href="/author/ann-42">Ann</a></li></ul></body></html>`)
	})
	mux.HandleFunc("/paper/7-a-paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "%PDF-1.4\n")
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func archiveConfig(t *testing.T, baseURL string) string {
	return writeConfig(t, fmt.Sprintf(`
year_delay: 0s
max_retries: 0
site:
  base_url: %q
  index_path_template: "/book/proceedings-{number}-{year}"
`, baseURL))
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestDoValidate_Defaults(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("", &stdout, &stderr)

	assert.Equal(t, ExitSuccess, exitCode)
	assert.Contains(t, stdout.String(), "OK: site http://papers.nips.cc")
	assert.Contains(t, stdout.String(), "Configuration valid")
	assert.Empty(t, stderr.String())
}

func TestDoValidate_InvalidYAML(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(writeConfig(t, "{{invalid yaml"), &stdout, &stderr)

	assert.Equal(t, ExitUsage, exitCode)
	assert.Contains(t, stderr.String(), "parse config")
}

func TestDoValidate_InvalidSite(t *testing.T) {
	cfgPath := writeConfig(t, `
site:
  base_url: "papers.example.org"
`)
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, ExitUsage, exitCode)
	assert.Contains(t, stderr.String(), "ERROR:")
	assert.Contains(t, stderr.String(), "not an absolute URL")
}

func TestDoValidate_Warnings(t *testing.T) {
	cfgPath := writeConfig(t, "detail_workers: -3\n")
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, ExitSuccess, exitCode)
	assert.Contains(t, stdout.String(), "WARN: detail_workers should be > 0")
}

func TestRun_ValidateReportsErrorOnce(t *testing.T) {
	cfgPath := writeConfig(t, `
site:
  base_url: "papers.example.org"
`)
	var stdout, stderr bytes.Buffer
	exitCode := run([]string{"validate", "--config", cfgPath}, &stdout, &stderr)

	assert.Equal(t, ExitUsage, exitCode)
	assert.Equal(t, 1, strings.Count(stderr.String(), "not an absolute URL"))
	assert.NotContains(t, stderr.String(), "configuration invalid")
	assert.NotContains(t, stdout.String(), "Configuration valid")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, ExitSuccess, run([]string{"version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "conf-crawler "+version)
}

func TestRun_MissingRequiredFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := run([]string{"crawl", "--from", "2000"}, &stdout, &stderr)

	assert.Equal(t, ExitUsage, exitCode)
	assert.Contains(t, stderr.String(), "to")
}

func TestRun_NonIntegerYear(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := run([]string{"crawl", "--from", "twenty", "--to", "2000"}, &stdout, &stderr)
	assert.Equal(t, ExitUsage, exitCode)
}

func TestRun_InvalidRangeMakesNoRequests(t *testing.T) {
	server, hits := fakeArchive(t)
	tmp := t.TempDir()

	var stdout, stderr bytes.Buffer
	exitCode := run([]string{
		"crawl", "--from", "2001", "--to", "2000",
		"--config", archiveConfig(t, server.URL),
		"--output", filepath.Join(tmp, "out"),
		"--state-dir", filepath.Join(tmp, "state"),
		"--log-file", "",
	}, &stdout, &stderr)

	assert.Equal(t, ExitUsage, exitCode)
	assert.Contains(t, stderr.String(), "invalid year range")
	assert.Zero(t, hits.Load())
	assert.NoDirExists(t, filepath.Join(tmp, "state"))
}

func TestRun_InvalidResumeSignal(t *testing.T) {
	tmp := t.TempDir()
	var stdout, stderr bytes.Buffer
	exitCode := run([]string{
		"crawl", "--from", "2000", "--to", "2000",
		"--resume-signal", "sometimes",
		"--state-dir", filepath.Join(tmp, "state"),
		"--log-file", "",
	}, &stdout, &stderr)

	assert.Equal(t, ExitUsage, exitCode)
	assert.Contains(t, stderr.String(), "resume_signal")
}

func TestRun_CrawlWritesOutputAndLogs(t *testing.T) {
	server, hits := fakeArchive(t)
	tmp := t.TempDir()
	outDir := filepath.Join(tmp, "out")
	logPath := filepath.Join(tmp, "crawl.log")

	var stdout, stderr bytes.Buffer
	exitCode := run([]string{
		"crawl", "--from", "2000", "--to", "2000",
		"--config", archiveConfig(t, server.URL),
		"--output", outDir,
		"--state-dir", filepath.Join(tmp, "state"),
		"--log-file", logPath,
		"--loglevel", "debug",
		"--write-visited-log",
	}, &stdout, &stderr)

	require.Equal(t, ExitSuccess, exitCode, stderr.String())
	assert.Equal(t, int64(3), hits.Load())
	assert.Contains(t, stdout.String(), "1 years, 1 papers written, 0 failed")
	assert.FileExists(t, filepath.Join(outDir, "data_2000", "pdfs", "7-a-paper.pdf"))

	records, err := os.ReadFile(filepath.Join(outDir, "data_2000", "papers_data.jsons"))
	require.NoError(t, err)
	assert.Contains(t, string(records), `"pdf_name":"7-a-paper.pdf"`)

	logData, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Paper saved")

	host, err := parse.HostKey(server.URL)
	require.NoError(t, err)
	visited, err := os.ReadFile(filepath.Join(outDir, utils.SanitizeFilename(host)+"-visited.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(visited), "year\t2000\tcomplete")
	assert.Contains(t, string(visited), "paper\t2000/7-a-paper.pdf\tsuccess")

	// A second run finds the year directory and fetches nothing
	hits.Store(0)
	stdout.Reset()
	exitCode = run([]string{
		"crawl", "--from", "2000", "--to", "2000",
		"--config", archiveConfig(t, server.URL),
		"--output", outDir,
		"--state-dir", filepath.Join(tmp, "state"),
		"--log-file", "",
	}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, exitCode, stderr.String())
	assert.Zero(t, hits.Load())
	assert.Contains(t, stdout.String(), "0 papers written")
}

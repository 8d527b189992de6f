package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/fetch"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testFetcher() *fetch.Fetcher {
	cfg := &config.AppConfig{MaxRetries: 0, InitialRetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}
	return fetch.NewFetcher(&http.Client{Timeout: 10 * time.Second}, cfg, testLogger())
}

// minimalPDF builds a one-page PDF with a correct cross-reference table
func minimalPDF() []byte {
	var buf bytes.Buffer
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func serve(t *testing.T, body []byte, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDownload_Success(t *testing.T) {
	body := []byte("not checked without verification")
	server := serve(t, body, http.StatusOK)
	dir := t.TempDir()
	dest := filepath.Join(dir, "1234-some-title.pdf")

	d := NewDownloader(testFetcher(), 0, false, testLogger())
	art, err := d.Download(context.Background(), server.URL+"/paper/1234-some-title.pdf", dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	want := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(want[:]), art.SHA256)
	assert.Equal(t, int64(len(body)), art.Bytes)
	assert.Equal(t, dest, art.Path)
	assert.Equal(t, []string{"1234-some-title.pdf"}, listDir(t, dir), "no temp files left behind")
}

func TestDownload_HTTPErrorLeavesNothing(t *testing.T) {
	server := serve(t, []byte("gone"), http.StatusNotFound)
	dir := t.TempDir()

	d := NewDownloader(testFetcher(), 0, false, testLogger())
	_, err := d.Download(context.Background(), server.URL, filepath.Join(dir, "1-x.pdf"))

	assert.ErrorIs(t, err, utils.ErrDownload)
	assert.NotErrorIs(t, err, utils.ErrFilesystem)
	assert.Empty(t, listDir(t, dir))
}

func TestDownload_SizeLimit(t *testing.T) {
	server := serve(t, bytes.Repeat([]byte("x"), 2048), http.StatusOK)
	dir := t.TempDir()

	d := NewDownloader(testFetcher(), 1024, false, testLogger())
	_, err := d.Download(context.Background(), server.URL, filepath.Join(dir, "1-x.pdf"))

	assert.ErrorIs(t, err, utils.ErrDownload)
	assert.Empty(t, listDir(t, dir))
}

func TestDownload_MissingDirectoryIsFilesystemError(t *testing.T) {
	server := serve(t, []byte("data"), http.StatusOK)

	d := NewDownloader(testFetcher(), 0, false, testLogger())
	_, err := d.Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "absent", "1-x.pdf"))

	assert.ErrorIs(t, err, utils.ErrFilesystem)
	assert.NotErrorIs(t, err, utils.ErrDownload)
}

func TestDownload_VerifyRejectsNonPDF(t *testing.T) {
	server := serve(t, []byte("<html>Abstract Missing</html>"), http.StatusOK)
	dir := t.TempDir()

	d := NewDownloader(testFetcher(), 0, true, testLogger())
	_, err := d.Download(context.Background(), server.URL, filepath.Join(dir, "1-x.pdf"))

	assert.ErrorIs(t, err, utils.ErrArtifactInvalid)
	assert.Empty(t, listDir(t, dir))
}

func TestDownload_VerifyAcceptsPDF(t *testing.T) {
	server := serve(t, minimalPDF(), http.StatusOK)
	dir := t.TempDir()

	d := NewDownloader(testFetcher(), 0, true, testLogger())
	_, err := d.Download(context.Background(), server.URL, filepath.Join(dir, "1-x.pdf"))

	require.NoError(t, err)
	assert.Equal(t, []string{"1-x.pdf"}, listDir(t, dir))
}

func TestVerifyPDF(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{"valid", minimalPDF(), nil},
		{"empty", nil, utils.ErrArtifactInvalid},
		{"html", []byte("<!DOCTYPE html><html></html>"), utils.ErrArtifactInvalid},
		{"truncated", minimalPDF()[:40], utils.ErrArtifactInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.pdf")
			require.NoError(t, os.WriteFile(path, tt.content, 0644))

			err := VerifyPDF(path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyPDF_MissingFile(t *testing.T) {
	err := VerifyPDF(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, utils.ErrFilesystem)
}

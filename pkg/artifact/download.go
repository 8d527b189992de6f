// Package artifact downloads paper PDFs into the year's artifact folder.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// Getter fetches a URL and returns only successful responses
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// Artifact describes a stored file
type Artifact struct {
	Path   string
	SHA256 string
	Bytes  int64
}

// Downloader streams artifacts to disk through a temporary file, so a failed
// transfer never leaves a partial file under the final name.
type Downloader struct {
	getter   Getter
	maxBytes int64 // 0 = unlimited
	verify   bool
	log      *logrus.Entry
}

// NewDownloader creates a Downloader; maxBytes 0 means no size limit
func NewDownloader(getter Getter, maxBytes int64, verify bool, log *logrus.Entry) *Downloader {
	return &Downloader{getter: getter, maxBytes: maxBytes, verify: verify, log: log}
}

// Download stores rawURL at destPath.
// Transfer problems wrap utils.ErrDownload, a rejected PDF wraps utils.ErrArtifactInvalid,
// and local file I/O problems wrap utils.ErrFilesystem.
func (d *Downloader) Download(ctx context.Context, rawURL, destPath string) (Artifact, error) {
	resp, err := d.getter.Get(ctx, rawURL)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %w", utils.ErrDownload, rawURL, err)
	}
	defer resp.Body.Close()

	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return Artifact{}, fmt.Errorf("%w: %s: size %s exceeds limit %s", utils.ErrDownload, rawURL,
			humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(d.maxBytes)))
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".part-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: create temp file: %w", utils.ErrFilesystem, err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpPath)
		}
	}()

	body := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, err := io.Copy(fsWriter{tmp}, body)
	closeErr := tmp.Close()
	if err != nil {
		if errors.Is(err, utils.ErrFilesystem) {
			return Artifact{}, err
		}
		return Artifact{}, fmt.Errorf("%w: %s: %w: %w", utils.ErrDownload, rawURL, utils.ErrResponseBodyRead, err)
	}
	if closeErr != nil {
		return Artifact{}, fmt.Errorf("%w: close %s: %w", utils.ErrFilesystem, tmpPath, closeErr)
	}
	if d.maxBytes > 0 && n > d.maxBytes {
		return Artifact{}, fmt.Errorf("%w: %s: body exceeds limit %s", utils.ErrDownload, rawURL, humanize.Bytes(uint64(d.maxBytes)))
	}

	if d.verify {
		if err := VerifyPDF(tmpPath); err != nil {
			return Artifact{}, utils.WrapErrorf(err, "%s", rawURL)
		}
	}

	sum, size, err := utils.CalculateFileSHA256(tmpPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: hash %s: %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return Artifact{}, fmt.Errorf("%w: rename to %s: %w", utils.ErrFilesystem, destPath, err)
	}
	keep = true

	d.log.WithFields(logrus.Fields{"file": filepath.Base(destPath), "size": humanize.Bytes(uint64(size))}).Debug("Stored artifact")
	return Artifact{Path: destPath, SHA256: sum, Bytes: size}, nil
}

// fsWriter tags write failures so they are not mistaken for transfer failures
type fsWriter struct {
	f *os.File
}

func (w fsWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %w", utils.ErrFilesystem, w.f.Name(), err)
	}
	return n, nil
}

package crawler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/models"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// YearDirName is the directory holding one year's output below the output root
func YearDirName(year string) string {
	return "data_" + year
}

// YearOutput owns the output directory and the append-only records file of one year.
type YearOutput struct {
	log         *logrus.Entry
	dir         string
	pdfDir      string
	recordsPath string

	mu   sync.Mutex
	file *os.File
}

// NewYearOutput describes the layout of year below outputRoot without touching the filesystem.
// Call Open before appending records.
func NewYearOutput(outputRoot string, site config.SiteConfig, year string, log *logrus.Entry) *YearOutput {
	dir := filepath.Join(outputRoot, YearDirName(year))
	return &YearOutput{
		log:         log,
		dir:         dir,
		pdfDir:      filepath.Join(dir, site.PDFFolder),
		recordsPath: filepath.Join(dir, site.RecordsFilename),
	}
}

// Dir returns the year output directory
func (o *YearOutput) Dir() string { return o.dir }

// RecordsPath returns the path of the year records file
func (o *YearOutput) RecordsPath() string { return o.recordsPath }

// PDFPath is where the artifact named pdfName is stored
func (o *YearOutput) PDFPath(pdfName string) string {
	return filepath.Join(o.pdfDir, pdfName)
}

// Exists reports whether the year directory is already present
func (o *YearOutput) Exists() (bool, error) {
	info, err := os.Stat(o.dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", utils.ErrFilesystem, o.dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s exists and is not a directory", utils.ErrFilesystem, o.dir)
	}
	return true, nil
}

// Open creates the directory tree and opens the records file for appending.
// Existing records are kept.
func (o *YearOutput) Open() error {
	if err := os.MkdirAll(o.pdfDir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", utils.ErrFilesystem, o.pdfDir, err)
	}
	file, err := os.OpenFile(o.recordsPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: open records file %s: %w", utils.ErrFilesystem, o.recordsPath, err)
	}
	if err := terminateLastLine(file); err != nil {
		file.Close()
		return fmt.Errorf("%w: repair records file %s: %w", utils.ErrFilesystem, o.recordsPath, err)
	}
	o.mu.Lock()
	o.file = file
	o.mu.Unlock()
	o.log.Debugf("Appending records to %s", o.recordsPath)
	return nil
}

// terminateLastLine appends a newline when an interrupted write left the file without one
func terminateLastLine(file *os.File) error {
	info, err := file.Stat()
	if err != nil || info.Size() == 0 {
		return err
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = file.Write([]byte{'\n'})
	return err
}

// Append writes rec as one JSON line. Safe for concurrent use.
func (o *YearOutput) Append(rec models.PaperRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: JSON encode record %s: %w", utils.ErrParsing, rec.PDFName, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return fmt.Errorf("%w: records file %s is not open", utils.ErrFilesystem, o.recordsPath)
	}
	if _, err := o.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write records file %s: %w", utils.ErrFilesystem, o.recordsPath, err)
	}
	return nil
}

// Close syncs and closes the records file. Closing an unopened or closed output is a no-op.
func (o *YearOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return nil
	}
	file := o.file
	o.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("%w: sync records file %s: %w", utils.ErrFilesystem, o.recordsPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close records file %s: %w", utils.ErrFilesystem, o.recordsPath, err)
	}
	return nil
}

// ReadRecords parses a records file. A missing file yields no records.
// Undecodable lines (left by an interrupted write) are skipped with a warning.
func ReadRecords(path string, log *logrus.Entry) ([]models.PaperRecord, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open records file %s: %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	var records []models.PaperRecord
	reader := bufio.NewReader(file)
	for lineNo := 1; ; lineNo++ {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return records, fmt.Errorf("%w: read records file %s: %w", utils.ErrFilesystem, path, readErr)
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			var rec models.PaperRecord
			if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
				log.WithField("line", lineNo).Warnf("Skipping undecodable record in %s: %v", path, err)
			} else {
				records = append(records, rec)
			}
		}
		if readErr != nil {
			break
		}
	}
	return records, nil
}

// LoadRecorded returns the set of pdf_names already present in a records file
func LoadRecorded(path string, log *logrus.Entry) (map[string]struct{}, error) {
	records, err := ReadRecords(path, log)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]struct{}, len(records))
	for _, rec := range records {
		recorded[rec.PDFName] = struct{}{}
	}
	return recorded, nil
}

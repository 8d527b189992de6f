package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/conf-crawler/pkg/models"
)

// PaperStore handles per-paper crawl bookkeeping, keyed by year and pdf_name
type PaperStore interface {
	// CheckPaperStatus returns PaperStatusNotFound when the paper was never attempted
	CheckPaperStatus(year, pdfName string) (models.PaperStatus, *models.PaperDBEntry, error)
	UpdatePaperStatus(year, pdfName string, entry *models.PaperDBEntry) error
	// FailedPapers lists the pdf_names of a year whose last attempt failed
	FailedPapers(ctx context.Context, year string) ([]string, error)
}

// YearStore handles per-year crawl bookkeeping
type YearStore interface {
	// CheckYearStatus returns YearStatusNotFound when the year was never started
	CheckYearStatus(year string) (models.YearStatus, *models.YearDBEntry, error)
	UpdateYearStatus(year string, entry *models.YearDBEntry) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetVisitedCount returns the number of keys in the store
	GetVisitedCount() (int, error)

	// WriteVisitedLog writes one tab-separated line (kind, key, status) per stored entry
	WriteVisitedLog(filePath string) error

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}

// CrawlStore combines all store interfaces for components that need full access
type CrawlStore interface {
	PaperStore
	YearStore
	StoreAdmin
}

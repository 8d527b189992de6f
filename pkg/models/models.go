package models

import (
	"maps"
	"slices"
	"time"
)

// ConferenceLocator identifies one edition of the conference and its index page
type ConferenceLocator struct {
	URL    string
	Year   string
	Number int // 1-based edition number, counted from the site's first year
}

// PaperRef is a paper link as found on an index page
type PaperRef struct {
	RawPath string // href exactly as written in the anchor
	Title   string // first text node of the anchor, verbatim
}

// Author is one entry of a paper's author list
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaperRecord is the persisted metadata of one paper, one JSON object per line in the records file.
// Abstract and Authors stay nil until the detail page has been extracted.
type PaperRecord struct {
	ID       string   `json:"id_"`
	Title    string   `json:"title"`
	PDFName  string   `json:"pdf_name"`
	PDFLink  string   `json:"pdf_link"`
	InfoLink string   `json:"info_link"`
	Abstract *string  `json:"abstract"`
	Authors  []Author `json:"authors"`
}

// IsComplete reports whether the detail phase has filled the record
func (r PaperRecord) IsComplete() bool {
	return r.Abstract != nil && r.Authors != nil
}

// PaperDBEntry stores the crawl bookkeeping of one paper in the state store
type PaperDBEntry struct {
	Status         PaperStatus `json:"status"`
	ErrorType      string      `json:"error_type,omitempty"`      // Error category (on failure)
	ProcessedAt    time.Time   `json:"processed_at,omitempty"`    // Timestamp of the successful write
	LastAttempt    time.Time   `json:"last_attempt"`              // Timestamp of the last attempt
	ArtifactSHA256 string      `json:"artifact_sha256,omitempty"` // Hex digest of the stored PDF
	ArtifactBytes  int64       `json:"artifact_bytes,omitempty"`
}

// YearDBEntry stores the crawl bookkeeping of one conference year
type YearDBEntry struct {
	Status      YearStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	Written     int        `json:"written"`
	Failed      int        `json:"failed"`
}

// PaperResult is the outcome of the per-paper pipeline
type PaperResult struct {
	PDFName string
	Outcome Outcome
	Kind    FailureKind // set when Outcome is OutcomeFailed
	Err     error
}

// YearResult aggregates the outcome of one conference year
type YearResult struct {
	Year            string
	Skipped         bool
	SkipReason      string
	Links           int // paper links found on the index page
	Written         int
	AlreadyRecorded int // links skipped because the records file already held them
	Failures        map[FailureKind]int
	Err             error // set when the index page could not be used
	Duration        time.Duration
}

// Record folds a paper result into the year totals
func (y *YearResult) Record(r PaperResult) {
	switch r.Outcome {
	case OutcomeWritten:
		y.Written++
	case OutcomeSkipped:
		y.AlreadyRecorded++
	case OutcomeFailed:
		if y.Failures == nil {
			y.Failures = make(map[FailureKind]int)
		}
		y.Failures[r.Kind]++
	}
}

// Failed returns the number of papers that failed in this year
func (y YearResult) Failed() int {
	n := 0
	for _, c := range y.Failures {
		n += c
	}
	return n
}

// FailureKinds returns the failure kinds seen in this year in a stable order
func (y YearResult) FailureKinds() []FailureKind {
	return slices.Sorted(maps.Keys(y.Failures))
}

// Summary is the result of a whole crawl run
type Summary struct {
	Years []YearResult
}

// Written returns the number of records written across all years
func (s Summary) Written() int {
	n := 0
	for _, y := range s.Years {
		n += y.Written
	}
	return n
}

// Failed returns the number of failed papers across all years
func (s Summary) Failed() int {
	n := 0
	for _, y := range s.Years {
		n += y.Failed()
	}
	return n
}

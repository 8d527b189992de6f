package models

// PaperStatus represents the processing status of a paper in the database
type PaperStatus string

const (
	PaperStatusUnset    PaperStatus = ""          // Zero value = unset/unknown
	PaperStatusSuccess  PaperStatus = "success"   // Record and artifact written
	PaperStatusFailure  PaperStatus = "failure"   // Pipeline failed for this paper
	PaperStatusNotFound PaperStatus = "not_found" // Paper not in database
	PaperStatusDBError  PaperStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s PaperStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s PaperStatus) IsValid() bool {
	switch s {
	case PaperStatusSuccess, PaperStatusFailure:
		return true
	}
	return false
}

// YearStatus represents the crawl status of a conference year in the database
type YearStatus string

const (
	YearStatusUnset      YearStatus = ""
	YearStatusInProgress YearStatus = "in_progress" // Directory created, papers being processed
	YearStatusComplete   YearStatus = "complete"    // Every link was attempted
	YearStatusFailed     YearStatus = "failed"      // Index page unusable
	YearStatusNotFound   YearStatus = "not_found"
	YearStatusDBError    YearStatus = "db_error"
)

// String implements fmt.Stringer for logging
func (s YearStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s YearStatus) IsValid() bool {
	switch s {
	case YearStatusInProgress, YearStatusComplete, YearStatusFailed:
		return true
	}
	return false
}

// Outcome is the result class of a per-paper pipeline
type Outcome int

const (
	OutcomeWritten Outcome = iota // Record appended and artifact stored
	OutcomeSkipped                // Already present in the records file
	OutcomeFailed
)

// String returns the outcome name used in logs
func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// FailureKind names the pipeline stage a paper failed in
type FailureKind string

const (
	FailMalformedLink    FailureKind = "malformed_link"
	FailFetchDetail      FailureKind = "fetch_detail"
	FailAbstractNotFound FailureKind = "abstract_not_found"
	FailMalformedAuthor  FailureKind = "malformed_author"
	FailDownload         FailureKind = "download"
	FailVerify           FailureKind = "verify"
)

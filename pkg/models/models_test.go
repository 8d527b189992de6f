package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperRecord_SkeletonSerializesNulls(t *testing.T) {
	rec := PaperRecord{
		ID:       "c9a5e3c3-6f5e-5d7e-9a8b-1a2b3c4d5e6f",
		Title:    "Some Title",
		PDFName:  "1234-some-title.pdf",
		PDFLink:  "http://papers.nips.cc/paper/1234-some-title.pdf",
		InfoLink: "http://papers.nips.cc/paper/1234-some-title",
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"abstract":null`)
	assert.Contains(t, raw, `"authors":null`)
	assert.Contains(t, raw, `"id_":"c9a5e3c3-6f5e-5d7e-9a8b-1a2b3c4d5e6f"`)
	assert.False(t, rec.IsComplete())
}

func TestPaperRecord_FieldSet(t *testing.T) {
	abstract := "We study things."
	rec := PaperRecord{
		ID:       "id",
		Title:    "t",
		PDFName:  "1-t.pdf",
		PDFLink:  "l.pdf",
		InfoLink: "l",
		Abstract: &abstract,
		Authors:  []Author{{ID: "a1", Name: "Ada"}},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Len(t, fields, 7)
	for _, k := range []string{"id_", "title", "pdf_name", "pdf_link", "info_link", "abstract", "authors"} {
		assert.Contains(t, fields, k)
	}
	assert.True(t, rec.IsComplete())

	var got PaperRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestPaperDBEntry_OmitEmpty(t *testing.T) {
	entry := PaperDBEntry{
		Status:      PaperStatusFailure,
		ErrorType:   "Paper_Download",
		LastAttempt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, "error_type")
	assert.NotContains(t, raw, "artifact_sha256")
	assert.NotContains(t, raw, "artifact_bytes")
}

func TestYearResult_Record(t *testing.T) {
	var y YearResult
	y.Record(PaperResult{PDFName: "1-a.pdf", Outcome: OutcomeWritten})
	y.Record(PaperResult{PDFName: "2-b.pdf", Outcome: OutcomeWritten})
	y.Record(PaperResult{PDFName: "3-c.pdf", Outcome: OutcomeSkipped})
	y.Record(PaperResult{PDFName: "4-d.pdf", Outcome: OutcomeFailed, Kind: FailDownload, Err: errors.New("boom")})
	y.Record(PaperResult{PDFName: "5-e.pdf", Outcome: OutcomeFailed, Kind: FailAbstractNotFound})
	y.Record(PaperResult{PDFName: "6-f.pdf", Outcome: OutcomeFailed, Kind: FailDownload})

	assert.Equal(t, 2, y.Written)
	assert.Equal(t, 1, y.AlreadyRecorded)
	assert.Equal(t, 3, y.Failed())
	assert.Equal(t, 2, y.Failures[FailDownload])
	assert.Equal(t, []FailureKind{FailAbstractNotFound, FailDownload}, y.FailureKinds())
}

func TestSummary_Totals(t *testing.T) {
	s := Summary{Years: []YearResult{
		{Year: "2000", Written: 3, Failures: map[FailureKind]int{FailVerify: 1}},
		{Year: "2001", Skipped: true},
		{Year: "2002", Written: 2, Failures: map[FailureKind]int{FailMalformedLink: 2, FailFetchDetail: 1}},
	}}

	assert.Equal(t, 5, s.Written())
	assert.Equal(t, 4, s.Failed())
}

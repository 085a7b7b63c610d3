package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Format identifies a carrier image format detected from magic bytes.
type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatBMP     Format = "bmp"
	FormatGIF     Format = "gif"
	FormatTIFF    Format = "tiff"
	FormatWEBP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// PlaneAddressable reports whether the format exposes per-pixel channel
// planes that the selector-search engine can walk. Transform-domain formats
// (JPEG) are handled by format-specific analyzers instead.
func (f Format) PlaneAddressable() bool {
	switch f {
	case FormatPNG, FormatBMP, FormatTIFF:
		return true
	}
	return false
}

// ImageSubmission is one uploaded carrier image. It is immutable once built.
type ImageSubmission struct {
	Data           []byte
	Hash           string
	Format         Format
	DeclaredFormat Format
	Filename       string
}

// NewSubmission builds a submission with its content hash. The detected
// format always wins over the declared hint; the hint is only recorded.
func NewSubmission(data []byte, detected, declared Format, filename string) *ImageSubmission {
	sum := sha256.Sum256(data)
	return &ImageSubmission{
		Data:           data,
		Hash:           hex.EncodeToString(sum[:]),
		Format:         detected,
		DeclaredFormat: declared,
		Filename:       filename,
	}
}

// JobStatus is the lifecycle state of one analyzer job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusOK      JobStatus = "ok"
	StatusSkipped JobStatus = "skipped"
	StatusError   JobStatus = "error"
)

// ReasonCode distinguishes why an analyzer job ended in error.
type ReasonCode string

const (
	ReasonTimeout     ReasonCode = "timeout"
	ReasonCrash       ReasonCode = "crash"
	ReasonUnavailable ReasonCode = "unavailable"
)

// AnalyzerJob is one (submission, analyzer) pairing with its terminal
// outcome. Terminal jobs are never mutated after the dispatcher hands them
// to the aggregator.
type AnalyzerJob struct {
	Analyzer  string        `json:"name"`
	Status    JobStatus     `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Code      ReasonCode    `json:"code,omitempty"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"-"`
	Elapsed   int64         `json:"duration_ms"`
	Artifacts []string      `json:"artifacts,omitempty"`
}

// Skipped builds a terminal SKIPPED job. Skips record non-applicability,
// never failure; they must not carry a reason code.
func Skipped(analyzer, reason string) AnalyzerJob {
	return AnalyzerJob{Analyzer: analyzer, Status: StatusSkipped, Reason: reason}
}

// Outcome classifies one extraction attempt.
type Outcome string

const (
	OutcomeRecovered Outcome = "recovered"
	OutcomeEmpty     Outcome = "empty"
	OutcomeTruncated Outcome = "truncated"
	OutcomeInvalid   Outcome = "invalid"
)

// ExtractionAttempt is the result of trying one selector against one
// submission. The outcome is a pure function of (submission bytes, selector).
type ExtractionAttempt struct {
	Selector   string  `json:"selector"`
	Outcome    Outcome `json:"outcome"`
	Recovered  []byte  `json:"recovered_bytes,omitempty"`
	PreviewHex string  `json:"preview_hex,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// Summary holds the per-status job counts. ok+skipped+error always equals
// the number of registered analyzers for the run.
type Summary struct {
	OKCount      int `json:"ok_count"`
	SkippedCount int `json:"skipped_count"`
	ErrorCount   int `json:"error_count"`
}

// Report aggregates every terminal job and extraction attempt for one
// submission. It is built once and read-only afterward.
type Report struct {
	SubmissionHash        string              `json:"submission_hash"`
	DetectedFormat        Format              `json:"detected_format"`
	Analyzers             []AnalyzerJob       `json:"analyzers"`
	ExtractionAttempts    []ExtractionAttempt `json:"extraction_attempts"`
	HeadlineRecoveredText string              `json:"headline_recovered_text,omitempty"`
	Summary               Summary             `json:"summary"`
}

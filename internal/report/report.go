// Package report collects the per-combination outcome record of a matrix
// walk.
//
// Every candidate combination ends up in exactly one bucket — executed,
// non-zero exit, skipped because the artifact already exists, dropped by a
// validity predicate, or failed to stage — and no bucket is ever silent:
// each record pairs with a log line. The report is observational only; it
// must never affect execution behavior.
package report

import (
	"encoding/json"
	"io"
)

// Outcome classifies what happened to one combination.
type Outcome string

const (
	// OutcomeExecuted: the external process ran and exited zero.
	OutcomeExecuted Outcome = "executed"
	// OutcomeFailed: the external process ran and exited non-zero.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkippedExists: the destination artifact already existed and the
	// check-exists policy suppressed the run.
	OutcomeSkippedExists Outcome = "already-exists"
	// OutcomeDropped: a validity predicate rejected the combination; no
	// command was produced.
	OutcomeDropped Outcome = "dropped"
	// OutcomeStagingError: a declared input could not be staged; the
	// combination's artifact is left absent.
	OutcomeStagingError Outcome = "staging-error"
)

// Record is one combination's outcome. Seq is the 1-based position in the
// stage's enumeration order (dropped combinations carry the sequence of the
// walk at the time they were filtered).
type Record struct {
	Seq      int     `json:"seq"`
	Matrix   string  `json:"matrix"`
	Path     string  `json:"path,omitempty"`
	Outcome  Outcome `json:"outcome"`
	ExitCode int     `json:"exit_code,omitempty"`
}

// Sink receives outcome records. Implementations must be inert: recording
// never fails and never influences the walk.
type Sink interface {
	Record(rec Record)
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) Record(Record) {}

// Recorder is an in-memory Sink preserving insertion order.
type Recorder struct {
	records []Record
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(rec Record) {
	r.records = append(r.records, rec)
}

// Records returns a point-in-time copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Summary tallies records per outcome.
func (r *Recorder) Summary() map[Outcome]int {
	sum := make(map[Outcome]int)
	for _, rec := range r.records {
		sum[rec.Outcome]++
	}
	return sum
}

// WriteJSON serializes the records as an indented JSON array.
func (r *Recorder) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.records)
}

// Package integration holds the result type shared by the best-effort
// follow-up calls made after a submission is stored.
package integration

import "errors"

// ErrNotConfigured marks an integration skipped for lack of configuration.
var ErrNotConfigured = errors.New("not configured")

// Outcome is the observed result of one best-effort call. Failures are
// carried as text and never propagated.
type Outcome struct {
	OK  bool   `json:"ok"`
	Err string `json:"error,omitempty"`
}

// Success returns a successful outcome, optionally with a note.
func Success(note string) Outcome {
	return Outcome{OK: true, Err: note}
}

// Failure converts err into a failed outcome.
func Failure(err error) Outcome {
	if err == nil {
		return Outcome{Err: "unknown error"}
	}
	return Outcome{Err: err.Error()}
}

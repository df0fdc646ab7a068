package issuer

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Only the first three stop the pipeline;
// render, archive and reconciliation failures degrade to warnings
// because the invoice is already legally issued by then.
var (
	// ErrMalformedCommand is returned when the message cannot be parsed.
	// No ledger row is created.
	ErrMalformedCommand = errors.New("malformed invoicing command")

	// ErrLedgerWrite is returned when the PENDING row cannot be
	// appended. The pipeline stops before touching the authority, so a
	// failed append can never orphan an authorized invoice.
	ErrLedgerWrite = errors.New("ledger append failed")

	// ErrAuthorization is returned when the authority refuses or times
	// out. The PENDING row is marked ERROR as an audit trail.
	ErrAuthorization = errors.New("authorization failed")

	// ErrRender is returned when the document cannot be produced.
	ErrRender = errors.New("document render failed")

	// ErrArchive is returned when the archive upload fails.
	ErrArchive = errors.New("archive upload failed")

	// ErrReconcile is returned when the ledger write-back fails after a
	// successful authorization. The user is still told success; the
	// discrepancy is visible only in the ledger.
	ErrReconcile = errors.New("ledger reconciliation failed")
)

// PipelineError wraps a stage failure with the stage sentinel and the
// underlying cause.
type PipelineError struct {
	Stage error // one of the sentinels above
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("issuer: %v: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Stage, target) || errors.Is(e.Err, target)
}

func stageErr(stage, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Stage: stage, Err: err}
}

// maxCauseLength bounds every externally-sourced error string before it
// is persisted or sent to the chat, so an unbounded authority payload
// cannot corrupt the ledger or blow the message size limit.
const maxCauseLength = 500

// truncateCause reduces an error to a bounded human-readable string.
func truncateCause(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) <= maxCauseLength {
		return s
	}
	return s[:maxCauseLength-3] + "..."
}

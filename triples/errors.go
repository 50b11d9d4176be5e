package triples

import "fmt"

// The error types below are the distinguished errors exposed at the
// store's boundary (SPEC_FULL.md §6-7). Each carries enough context to
// format a useful message and can be matched with errors.As;
// WriteRuleError also exposes its optional cause via Unwrap, following the *DataError/*TableError idiom used by the closest
// reference embedded-db in the retrieval pack.

// IndexNotFoundError is raised when a scan result carries an unknown
// index-family tag — a programmer error, since the codec only ever
// writes tags it also knows how to decode.
type IndexNotFoundError struct {
	Tag string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("triples: unknown index family %q", e.Tag)
}

// InvalidTimestampIndexScanError is raised when FindByClientTimestamp is
// called with an operator outside {lt, lte, gt, gte, eq}.
type InvalidTimestampIndexScanError struct {
	Op string
}

func (e *InvalidTimestampIndexScanError) Error() string {
	return fmt.Sprintf("triples: invalid client-timestamp scan operator %q", e.Op)
}

// InvalidTripleStoreValueError is raised when a fact's value is the
// Undefined sentinel (invariant 7).
type InvalidTripleStoreValueError struct {
	Value Value
}

func (e *InvalidTripleStoreValueError) Error() string {
	return fmt.Sprintf("triples: invalid fact value %v", e.Value)
}

// TripleStoreOptionsError is raised at construction time when the
// supplied Options are contradictory or incomplete.
type TripleStoreOptionsError struct {
	Msg string
}

func (e *TripleStoreOptionsError) Error() string {
	return fmt.Sprintf("triples: invalid triple store options: %s", e.Msg)
}

// WriteRuleError is the designated error type whose return from user
// code during a transaction cancels the enclosing transaction
// (SPEC_FULL.md §4.G "Commit/cancel"). Any other error returned from the
// callback propagates without cancelling.
type WriteRuleError struct {
	Msg string
	Err error
}

func (e *WriteRuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("triples: write rule violated: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("triples: write rule violated: %s", e.Msg)
}

func (e *WriteRuleError) Unwrap() error { return e.Err }

// NewWriteRuleError wraps msg (and optionally an underlying cause) into
// the distinguished cancel-triggering error.
func NewWriteRuleError(msg string, cause error) error {
	return &WriteRuleError{Msg: msg, Err: cause}
}

// InvariantViolationError indicates the store observed a state that
// should be structurally impossible (e.g. more than one EAV row under a
// single key) — invariant 1, "key uniqueness per index", broken.
type InvariantViolationError struct {
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("triples: internal invariant violated: %s", e.Msg)
}

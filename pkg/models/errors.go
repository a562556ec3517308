package models

import "errors"

// Error kinds shared across the pipeline. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrTransient marks network or service failures worth retrying
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks service failures that will not succeed on retry (bad request, auth)
	ErrPermanent = errors.New("permanent failure")
	// ErrPrecondition marks a missing required input, e.g. no summary before the image step
	ErrPrecondition = errors.New("precondition failed")
	// ErrData marks a source payload that cannot be parsed into a Book
	ErrData = errors.New("invalid data")
	// ErrCorruption marks an unreadable progress file
	ErrCorruption = errors.New("corrupt progress file")
	// ErrCardinality marks a catalog whose size does not match the expected count
	ErrCardinality = errors.New("catalog cardinality mismatch")
)

// Retryable reports whether an operation that failed with err may succeed if attempted again
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrPrecondition) &&
		!errors.Is(err, ErrData) &&
		!errors.Is(err, ErrPermanent) &&
		!errors.Is(err, ErrCardinality)
}

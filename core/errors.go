package core

import "errors"

// Sentinel errors for the pipeline. Callers classify failures with
// errors.Is; wrapped messages carry the specifics (target, epoch, pair).
var (
	// ErrResolution means the ephemeris source does not know the
	// designator. Fatal for that target only.
	ErrResolution = errors.New("designator not resolved")

	// ErrEphemerisGap means one requested epoch returned no data. Fatal
	// for that document; the offending epoch is in the wrapped message.
	ErrEphemerisGap = errors.New("no ephemeris data for epoch")

	// ErrValidation means a sample sequence or document violates the data
	// model invariants. Never coerced.
	ErrValidation = errors.New("invalid document")

	// ErrConflict means two documents in a bundle cover overlapping
	// epochs for the same target. Requires operator resolution.
	ErrConflict = errors.New("overlapping schedules for target")

	// ErrEmptyBundle means Assemble was given no documents.
	ErrEmptyBundle = errors.New("empty bundle")
)

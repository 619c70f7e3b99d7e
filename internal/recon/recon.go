// Package recon selects candidate occultation targets from the published
// prediction lists. The core pipeline only sees the narrow Lister
// interface, never the list's layout.
package recon

import (
	"context"
	"time"
)

// Candidate is one body from a prediction list that is worth tracking.
type Candidate struct {
	// Designator in unpacked form, e.g. "2013 UO17" or "15760".
	Designator string

	// Class is the dynamical classification from the list,
	// e.g. "RESONANT", "CLASSICAL".
	Class string

	// PosErrArcsec is the current ephemeris positional uncertainty.
	PosErrArcsec float64

	// EventTime is the predicted occultation instant, zero when the list
	// is an ephemeris-improvement list with no event column.
	EventTime time.Time
}

// Lister yields the candidate targets for an observing window, in list
// order.
type Lister interface {
	ListCandidates(ctx context.Context, windowStart, windowEnd time.Time) ([]Candidate, error)
}

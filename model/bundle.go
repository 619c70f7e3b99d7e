package model

import "time"

// SubmissionBundle groups one or more ET documents for a single upload
// transaction, together with the observing-program structure the scheduler
// expects around them.
type SubmissionBundle struct {
	// ID uniquely identifies this upload transaction in logs and results.
	ID string

	// RunID is the observing program all documents in the bundle belong to.
	RunID string
	// QRunID identifies the queue run the bundle is being prepared for.
	QRunID string

	// Documents is ordered deterministically: by designator, then window
	// start. The bundle does not own the documents; they stay read-only.
	Documents []*ETDocument

	// Blocks and Groups are the derived scheduling structure: one
	// observing block per document, blocks gathered into sky-proximate
	// observing groups.
	Blocks []ObservingBlock
	Groups []ObservingGroup

	CreatedAt time.Time
}

// ObservingBlock ties one target document to an instrument configuration.
type ObservingBlock struct {
	Token         string
	TargetToken   string
	InstrumentCfg string
	ExposureTimeS int
}

// ObservingGroup is an ordered set of observing blocks scheduled together.
// Groups are repeated so the scheduler revisits each field for tracking.
type ObservingGroup struct {
	Token       string
	BlockTokens []string
	// IntegrationS is the summed exposure time of the member blocks.
	IntegrationS int
}

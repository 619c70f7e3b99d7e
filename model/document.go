package model

// SchemaVersionCFHTAPI is the tracking-document schema currently accepted
// by the queue-scheduler submission endpoint.
const SchemaVersionCFHTAPI = "CFHT API"

// ETDocument is one target's complete tracking document for one time
// window: the artifact handed to the remote scheduler so the telescope can
// follow the body without drift.
//
// Documents are built once by core.Build and never mutated afterwards; the
// assembler and uploader treat them as read-only.
type ETDocument struct {
	Target        Target
	Window        SampleWindow
	Samples       []EphemerisSample
	SchemaVersion string

	// Token is the client token identifying this document to the
	// scheduler. Derived from the target designator at build time.
	Token string
}

// Mag returns the apparent magnitude of the first sample, the value the
// scheduler uses to pick an exposure time. Returns fallback when no sample
// carries a magnitude.
func (d *ETDocument) Mag(fallback float64) float64 {
	for _, s := range d.Samples {
		if s.Mag != 0 {
			return s.Mag
		}
	}
	return fallback
}

package core

import (
	"fmt"
	"time"

	"github.com/ossos-labs/mptrack/model"
)

// epochSlack absorbs sub-second rounding when comparing sample spacing
// against the declared cadence.
const epochSlack = time.Second

// Build converts a sample sequence plus target metadata into one
// schema-conformant tracking document. It is the sole producer of
// ETDocuments; the returned document is immutable from here on.
//
// Build fails with an error wrapping ErrValidation when the sequence
// violates the data-model invariants: empty sequence, non-monotonic
// epochs, a gap wider than the declared cadence, endpoints that do not
// match the window, or a target missing its program identifier.
func Build(target model.Target, samples []model.EphemerisSample, window model.SampleWindow, schemaVersion string) (*model.ETDocument, error) {
	if target.Designator == "" {
		return nil, fmt.Errorf("%w: target designator is empty", ErrValidation)
	}
	if target.RunID == "" {
		return nil, fmt.Errorf("%w: target %s has no program identifier (runid)", ErrValidation, target.Designator)
	}
	if schemaVersion == "" {
		return nil, fmt.Errorf("%w: schema version is empty", ErrValidation)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty sample sequence for %s", ErrValidation, target.Designator)
	}
	if !window.End.After(window.Start) {
		return nil, fmt.Errorf("%w: window end %s not after start %s", ErrValidation,
			window.End.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}

	first := samples[0].Epoch
	last := samples[len(samples)-1].Epoch
	if !first.Equal(window.Start) {
		return nil, fmt.Errorf("%w: first sample %s does not match window start %s", ErrValidation,
			first.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}
	if !last.Equal(window.End) {
		return nil, fmt.Errorf("%w: last sample %s does not match window end %s", ErrValidation,
			last.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}

	for i := 1; i < len(samples); i++ {
		gap := samples[i].Epoch.Sub(samples[i-1].Epoch)
		if gap <= 0 {
			return nil, fmt.Errorf("%w: epochs not strictly increasing at index %d (%s)", ErrValidation,
				i, samples[i].Epoch.Format(time.RFC3339))
		}
		// Clipped sequences legitimately skip the daylight hours between
		// nights; only unclipped sampling promises gap-free coverage.
		if !window.Clipped && window.Cadence > 0 && gap > window.Cadence+epochSlack {
			return nil, fmt.Errorf("%w: gap of %s at index %d exceeds cadence %s", ErrValidation,
				gap, i, window.Cadence)
		}
	}

	doc := &model.ETDocument{
		Target:        target,
		Window:        window,
		Samples:       append([]model.EphemerisSample(nil), samples...),
		SchemaVersion: schemaVersion,
		Token:         target.Token(),
	}
	return doc, nil
}

// RebuildWindow derives a window from an already-filtered sample
// sequence, keeping the original cadence. Used when visibility clipping
// narrowed the observable stretch: the document's declared window must
// still span its samples exactly, and the clipped flag tells Build to
// accept the daytime gaps between nights.
func RebuildWindow(samples []model.EphemerisSample, cadence time.Duration) (model.SampleWindow, error) {
	if len(samples) < 2 {
		return model.SampleWindow{}, fmt.Errorf("%w: need at least two samples to derive a window", ErrValidation)
	}
	w := model.SampleWindow{
		Start:   samples[0].Epoch,
		End:     samples[len(samples)-1].Epoch,
		Cadence: cadence,
		Clipped: true,
	}
	w.ShortFinalInterval = w.Duration()%cadence != 0
	return w, nil
}

package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ossos-labs/mptrack/model"
)

// EphemerisSource is the external capability that predicts where a body is
// at one instant. Implementations must return a sample whose rate fields
// are the source's own instantaneous values for that epoch.
//
// A designator the source does not know yields an error wrapping
// ErrResolution; an epoch with no data yields one wrapping ErrEphemerisGap.
type EphemerisSource interface {
	Predict(ctx context.Context, designator string, epoch time.Time) (model.EphemerisSample, error)
}

// Sample queries the source once per epoch across [start, end] at the
// given cadence and returns the samples in strictly increasing epoch
// order. Both endpoints are always included; when the cadence does not
// divide the window evenly the final interval is shortened and the
// returned window is flagged, never silently truncated.
//
// Rates are recorded verbatim from the source. Sample never interpolates.
func Sample(ctx context.Context, src EphemerisSource, target model.Target, start, end time.Time, cadence time.Duration) ([]model.EphemerisSample, model.SampleWindow, error) {
	window := model.SampleWindow{Start: start.UTC(), End: end.UTC(), Cadence: cadence}

	if src == nil {
		return nil, window, fmt.Errorf("%w: nil ephemeris source", ErrValidation)
	}
	if !end.After(start) {
		return nil, window, fmt.Errorf("%w: window end %s not after start %s", ErrValidation, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	if cadence <= 0 {
		return nil, window, fmt.Errorf("%w: cadence must be positive, got %s", ErrValidation, cadence)
	}

	steps, short := epochs(window.Start, window.End, cadence)
	window.ShortFinalInterval = short

	samples := make([]model.EphemerisSample, 0, len(steps))
	for _, epoch := range steps {
		s, err := src.Predict(ctx, target.Designator, epoch)
		if err != nil {
			return nil, window, fmt.Errorf("predict %s at %s: %w", target.Designator, epoch.Format(time.RFC3339), err)
		}
		s.Epoch = epoch
		samples = append(samples, s)
	}
	return samples, window, nil
}

// epochs partitions [start, end] into closed, equally spaced instants
// including both endpoints. The second return is true when the last
// interval had to be shortened to land exactly on end.
func epochs(start, end time.Time, cadence time.Duration) ([]time.Time, bool) {
	var out []time.Time
	for t := start; t.Before(end); t = t.Add(cadence) {
		out = append(out, t)
	}
	out = append(out, end)

	short := end.Sub(start)%cadence != 0
	return out, short
}

// TargetOutcome is the per-target result of a concurrent sampling run.
// Err is set when sampling that target failed; other targets in the same
// run are unaffected.
type TargetOutcome struct {
	Target  model.Target
	Samples []model.EphemerisSample
	Window  model.SampleWindow
	Err     error
}

// SampleAll samples every target over the same window concurrently.
// Sequences and documents for distinct targets are self-contained, so no
// coordination beyond the final join is needed. Outcomes come back in
// input order.
func SampleAll(ctx context.Context, src EphemerisSource, targets []model.Target, start, end time.Time, cadence time.Duration) []TargetOutcome {
	outcomes := make([]TargetOutcome, len(targets))

	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt model.Target) {
			defer wg.Done()
			samples, window, err := Sample(ctx, src, tgt, start, end, cadence)
			outcomes[i] = TargetOutcome{Target: tgt, Samples: samples, Window: window, Err: err}
		}(i, tgt)
	}
	wg.Wait()

	return outcomes
}

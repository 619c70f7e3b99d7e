package core

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ossos-labs/mptrack/model"
)

// icExposureTimes is the exposure-time ladder configured on the
// instrument, in seconds. The slot index maps to the instrument
// configuration identifier I1..I13, which must match what phase 2 has.
var icExposureTimes = []int{40, 80, 120, 160, 200, 240, 300, 340, 380, 420, 440, 480, 500}

// ExposureTimeIndex picks the ladder slot for a source of the given
// apparent magnitude, scaling off a 300 s exposure needed at mag 24.5 and
// clamping to the 40 s instrument overhead floor.
func ExposureTimeIndex(mag float64) int {
	exact := 300.0 / math.Pow(math.Pow(10, (24.5-mag)/2.5), 2)
	exact = math.Min(499, math.Max(40, exact))

	above := 0
	for _, cut := range icExposureTimes {
		if exact < float64(cut) {
			above++
		}
	}
	return len(icExposureTimes) - above
}

// ExposureTime returns the ladder exposure time in seconds for a source
// of the given magnitude.
func ExposureTime(mag float64) int {
	return icExposureTimes[ExposureTimeIndex(mag)]
}

// InstrumentConfigIdentifier returns the phase-2 instrument configuration
// token ("I1".."I13") for a source of the given magnitude.
func InstrumentConfigIdentifier(mag float64) string {
	return fmt.Sprintf("I%d", ExposureTimeIndex(mag)+1)
}

// AssembleOptions tunes bundle composition. Zero values take the
// defaults the observing program has always run with.
type AssembleOptions struct {
	// RunID overrides the program identifier; when empty it is taken
	// from the documents, which must agree.
	RunID string

	// QRunID identifies the queue run; required so regenerated groups get
	// fresh tokens even for fields already observed.
	QRunID string

	// TrackingRepeats is how many copies of each observing group are
	// emitted so the scheduler revisits each field. Default 3.
	TrackingRepeats int

	// MaxGroupSeparationDeg keeps a group's targets within one slew
	// neighbourhood. Default 10 degrees.
	MaxGroupSeparationDeg float64

	// MaxGroupIntegrationS caps a group's summed exposure time.
	// Default 3000 s.
	MaxGroupIntegrationS int

	// DefaultMag is assumed for documents without a predicted magnitude.
	// Default 25.0.
	DefaultMag float64

	// CreatedAt stamps the bundle; zero means time.Now().
	CreatedAt time.Time
}

func (o AssembleOptions) applyDefaults() AssembleOptions {
	if o.TrackingRepeats <= 0 {
		o.TrackingRepeats = 3
	}
	if o.MaxGroupSeparationDeg <= 0 {
		o.MaxGroupSeparationDeg = 10
	}
	if o.MaxGroupIntegrationS <= 0 {
		o.MaxGroupIntegrationS = 3000
	}
	if o.DefaultMag == 0 {
		o.DefaultMag = 25.0
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	return o
}

// Assemble merges ET documents into a single submission bundle.
//
// Documents are ordered deterministically (designator, then window start)
// so identical inputs always produce an identical payload. Two documents
// covering overlapping epochs for the same target are a construction
// error, never silently merged: Assemble fails with ErrConflict naming
// the offending pair. Zero documents fail with ErrEmptyBundle.
func Assemble(docs []*model.ETDocument, opts AssembleOptions) (*model.SubmissionBundle, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyBundle
	}
	opts = opts.applyDefaults()

	runID := opts.RunID
	for _, doc := range docs {
		if runID == "" {
			runID = doc.Target.RunID
		}
		if doc.Target.RunID != runID {
			return nil, fmt.Errorf("%w: document %s has runid %q, bundle has %q",
				ErrValidation, doc.Token, doc.Target.RunID, runID)
		}
	}

	ordered := append([]*model.ETDocument(nil), docs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Target.Designator != ordered[j].Target.Designator {
			return ordered[i].Target.Designator < ordered[j].Target.Designator
		}
		return ordered[i].Window.Start.Before(ordered[j].Window.Start)
	})

	// All-pairs overlap check per target identity. Documents for distinct
	// targets never conflict.
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[i].Target.Designator != ordered[j].Target.Designator {
				continue
			}
			if ordered[i].Window.Overlaps(ordered[j].Window) {
				return nil, fmt.Errorf("%w %s: windows [%s, %s] and [%s, %s]",
					ErrConflict, ordered[i].Target.Designator,
					ordered[i].Window.Start.Format(time.RFC3339), ordered[i].Window.End.Format(time.RFC3339),
					ordered[j].Window.Start.Format(time.RFC3339), ordered[j].Window.End.Format(time.RFC3339))
			}
		}
	}

	bundle := &model.SubmissionBundle{
		ID:        uuid.NewString(),
		RunID:     runID,
		QRunID:    opts.QRunID,
		Documents: ordered,
		CreatedAt: opts.CreatedAt,
	}
	bundle.Blocks = buildBlocks(ordered, opts)
	bundle.Groups = buildGroups(bundle, opts)
	return bundle, nil
}

// buildBlocks emits one observing block per document, with the exposure
// time picked from the document's predicted magnitude.
func buildBlocks(docs []*model.ETDocument, opts AssembleOptions) []model.ObservingBlock {
	blocks := make([]model.ObservingBlock, 0, len(docs))
	for _, doc := range docs {
		mag := doc.Mag(opts.DefaultMag)
		blocks = append(blocks, model.ObservingBlock{
			Token:         fmt.Sprintf("OB-%s-%s", opts.QRunID, doc.Token),
			TargetToken:   doc.Token,
			InstrumentCfg: InstrumentConfigIdentifier(mag),
			ExposureTimeS: ExposureTime(mag),
		})
	}
	return blocks
}

// buildGroups gathers blocks into observing groups: targets are walked in
// RA order, a group only accepts targets within MaxGroupSeparationDeg of
// its first member, and its summed exposure time stays under the cap.
// Each group is emitted TrackingRepeats times with distinct tokens so the
// scheduler takes repeat visits for tracking.
func buildGroups(bundle *model.SubmissionBundle, opts AssembleOptions) []model.ObservingGroup {
	type member struct {
		doc   *model.ETDocument
		block model.ObservingBlock
	}
	members := make([]member, len(bundle.Documents))
	for i, doc := range bundle.Documents {
		members[i] = member{doc: doc, block: bundle.Blocks[i]}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].doc.Samples[0].RA < members[j].doc.Samples[0].RA
	})

	var groups []model.ObservingGroup
	scheduled := make(map[string]bool, len(members))
	groupIdx := 0

	for len(scheduled) < len(members) {
		groupIdx++
		var tokens []string
		itime := 0
		seedRA, seedDec := 0.0, 0.0
		seeded := false

		for _, m := range members {
			if scheduled[m.block.Token] {
				continue
			}
			ra, dec := m.doc.Samples[0].RA, m.doc.Samples[0].Dec
			if !seeded {
				seedRA, seedDec = ra, dec
				seeded = true
			} else if AngularSeparation(seedRA, seedDec, ra, dec) > opts.MaxGroupSeparationDeg {
				// Too far for one slew neighbourhood; it seeds a later group.
				continue
			}
			tokens = append(tokens, m.block.Token)
			scheduled[m.block.Token] = true
			itime += m.block.ExposureTimeS
			if itime > opts.MaxGroupIntegrationS {
				break
			}
		}

		for repeat := 0; repeat < opts.TrackingRepeats; repeat++ {
			groups = append(groups, model.ObservingGroup{
				Token:        fmt.Sprintf("OG_%s_%s_%d_%d", bundle.RunID, opts.QRunID, groupIdx, repeat),
				BlockTokens:  append([]string(nil), tokens...),
				IntegrationS: itime,
			})
		}
	}
	return groups
}

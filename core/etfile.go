package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ossos-labs/mptrack/model"
)

// degPerDayToArcsecPerHour converts the internal rate representation to
// the arcsec/hour the scheduler's schema uses: 3600 arcsec per degree,
// 24 hours per day.
const degPerDayToArcsecPerHour = 3600.0 / 24.0

// internal JSON shapes for the ET document artifact – kept unexported so
// the wire format can evolve independently of the model types. The field
// set and naming follow the scheduler's schema: degrees for coordinates,
// arcsec/hour for rates, RFC 3339 UTC for epochs.
type etDocumentJSON struct {
	SchemaVersion string             `json:"schema_version"`
	Name          string             `json:"name"`
	RunID         string             `json:"runid"`
	BlockID       string             `json:"block_id,omitempty"`
	Identifier    etIdentifierJSON   `json:"identifier"`
	Window        etWindowJSON       `json:"window"`
	MovingTarget  etMovingTargetJSON `json:"moving_target"`
}

type etIdentifierJSON struct {
	ClientToken string `json:"client_token"`
}

type etWindowJSON struct {
	Start              string `json:"start"`
	End                string `json:"end"`
	CadenceSeconds     int64  `json:"cadence_seconds"`
	ShortFinalInterval bool   `json:"short_final_interval,omitempty"`
	Clipped            bool   `json:"clipped,omitempty"`
}

type etMovingTargetJSON struct {
	EphemerisPoints []etPointJSON `json:"ephemeris_points"`
}

type etPointJSON struct {
	Epoch      string           `json:"epoch"`
	Coordinate etCoordinateJSON `json:"coordinate"`
	Rate       etRateJSON       `json:"rate"`
	Mag        float64          `json:"mag,omitempty"`
}

type etCoordinateJSON struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

type etRateJSON struct {
	RAArcsecPerHour  float64 `json:"ra_arcsec_per_hour"`
	DecArcsecPerHour float64 `json:"dec_arcsec_per_hour"`
}

// WriteETDocument emits the document as indented JSON so operators can
// inspect or hand-edit the artifact between building and submission.
func WriteETDocument(w io.Writer, doc *model.ETDocument) error {
	if doc == nil {
		return fmt.Errorf("WriteETDocument: nil document")
	}

	payload := etDocumentJSON{
		SchemaVersion: doc.SchemaVersion,
		Name:          doc.Token,
		RunID:         doc.Target.RunID,
		BlockID:       doc.Target.BlockID,
		Identifier:    etIdentifierJSON{ClientToken: doc.Token},
		Window: etWindowJSON{
			Start:              doc.Window.Start.UTC().Format(time.RFC3339),
			End:                doc.Window.End.UTC().Format(time.RFC3339),
			CadenceSeconds:     int64(doc.Window.Cadence / time.Second),
			ShortFinalInterval: doc.Window.ShortFinalInterval,
			Clipped:            doc.Window.Clipped,
		},
	}

	points := make([]etPointJSON, 0, len(doc.Samples))
	for _, s := range doc.Samples {
		points = append(points, etPointJSON{
			Epoch: s.Epoch.UTC().Format(time.RFC3339),
			Coordinate: etCoordinateJSON{
				RA:  s.RA,
				Dec: s.Dec,
			},
			Rate: etRateJSON{
				RAArcsecPerHour:  s.RateRA * degPerDayToArcsecPerHour,
				DecArcsecPerHour: s.RateDec * degPerDayToArcsecPerHour,
			},
			Mag: s.Mag,
		})
	}
	payload.MovingTarget = etMovingTargetJSON{EphemerisPoints: points}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("WriteETDocument: encode failed: %w", err)
	}
	return nil
}

// ReadETDocument re-loads a previously written artifact. Reading back a
// document written by WriteETDocument yields the identical set of (epoch,
// position, rate) tuples; the loaded document is re-validated against the
// same invariants Build enforces.
func ReadETDocument(r io.Reader) (*model.ETDocument, error) {
	var payload etDocumentJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("ReadETDocument: decode failed: %w", err)
	}

	start, err := time.Parse(time.RFC3339, payload.Window.Start)
	if err != nil {
		return nil, fmt.Errorf("ReadETDocument: bad window start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, payload.Window.End)
	if err != nil {
		return nil, fmt.Errorf("ReadETDocument: bad window end: %w", err)
	}

	window := model.SampleWindow{
		Start:              start.UTC(),
		End:                end.UTC(),
		Cadence:            time.Duration(payload.Window.CadenceSeconds) * time.Second,
		ShortFinalInterval: payload.Window.ShortFinalInterval,
		Clipped:            payload.Window.Clipped,
	}

	samples := make([]model.EphemerisSample, 0, len(payload.MovingTarget.EphemerisPoints))
	for i, p := range payload.MovingTarget.EphemerisPoints {
		epoch, err := time.Parse(time.RFC3339, p.Epoch)
		if err != nil {
			return nil, fmt.Errorf("ReadETDocument: bad epoch at point %d: %w", i, err)
		}
		samples = append(samples, model.EphemerisSample{
			Epoch:   epoch.UTC(),
			RA:      p.Coordinate.RA,
			Dec:     p.Coordinate.Dec,
			RateRA:  p.Rate.RAArcsecPerHour / degPerDayToArcsecPerHour,
			RateDec: p.Rate.DecArcsecPerHour / degPerDayToArcsecPerHour,
			Mag:     p.Mag,
		})
	}

	// Tokens replace designator spaces with underscores; reverse that to
	// recover the designator.
	target := model.Target{
		Designator: unsanitizeToken(payload.Name),
		RunID:      payload.RunID,
		BlockID:    payload.BlockID,
	}

	return Build(target, samples, window, payload.SchemaVersion)
}

func unsanitizeToken(token string) string {
	out := make([]rune, 0, len(token))
	for _, r := range token {
		if r == '_' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}

package model

// Target identifies a solar-system body to be tracked, together with the
// observing program it belongs to. Immutable once resolved.
type Target struct {
	// Designator is the minor-planet designator in unpacked form,
	// e.g. "2013 UO17" or "15760".
	Designator string

	// RunID is the observing program identifier the target is scheduled
	// under, e.g. "17BC08". Required by the submission schema.
	RunID string

	// BlockID is an optional observing-block identifier assigned upstream.
	BlockID string
}

// Token returns the client token used for this target in submission
// payloads. The receiving scheduler forbids whitespace in tokens.
func (t Target) Token() string {
	out := make([]rune, 0, len(t.Designator))
	for _, r := range t.Designator {
		if r == ' ' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}

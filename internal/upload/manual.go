package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/internal/logging"
	"github.com/ossos-labs/mptrack/model"
)

// Printer is the manual-delivery terminal of the upload state machine:
// instead of POSTing, it writes the full program payload to w for an
// operator to submit by hand. Every document reports
// DeliveryManualRequired so the caller's outcome handling stays uniform
// across modes.
type Printer struct {
	Out io.Writer
	Log logging.Logger
}

// Deliver writes the bundle's program payload and returns one result per
// document in bundle order.
func (p *Printer) Deliver(ctx context.Context, bundle *model.SubmissionBundle) ([]model.UploadResult, error) {
	log := p.Log
	if log == nil {
		log = logging.Noop()
	}

	if err := core.WriteProgram(p.Out, bundle); err != nil {
		return nil, fmt.Errorf("writing program payload: %w", err)
	}
	log.Info(ctx, "program payload written for manual delivery",
		logging.String("runid", bundle.RunID),
		logging.Int("documents", len(bundle.Documents)),
	)

	results := make([]model.UploadResult, 0, len(bundle.Documents))
	for _, doc := range bundle.Documents {
		results = append(results, model.UploadResult{
			Token:      doc.Token,
			State:      model.DeliveryManualRequired,
			Diagnostic: "written for manual submission",
		})
	}
	return results, nil
}

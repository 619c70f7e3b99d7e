package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ossos-labs/mptrack/model"
)

// Program payload shapes for the phase-2 configuration the scheduler
// consumes alongside the per-target documents.
type programJSON struct {
	RunID         string            `json:"runid"`
	QRunID        string            `json:"qrunid"`
	Configuration programConfigJSON `json:"program_configuration"`
}

type programConfigJSON struct {
	Targets         []json.RawMessage    `json:"targets"`
	ObservingBlocks []observingBlockJSON `json:"observing_blocks"`
	ObservingGroups []observingGroupJSON `json:"observing_groups"`
}

type tokenRefJSON struct {
	ClientToken string `json:"client_token,omitempty"`
	ServerToken string `json:"server_token,omitempty"`
}

type observingBlockJSON struct {
	Identifier           tokenRefJSON   `json:"identifier"`
	TargetIdentifier     tokenRefJSON   `json:"target_identifier"`
	InstrumentConfigRefs []tokenRefJSON `json:"instrument_config_identifiers"`
}

type observingGroupJSON struct {
	Identifier         tokenRefJSON   `json:"identifier"`
	ObservingBlockRefs []tokenRefJSON `json:"observing_block_identifiers"`
}

// WriteProgram emits the bundle's full program configuration as one JSON
// payload: every target document inline, plus the observing blocks and
// groups derived at assembly. This is both the manual-delivery artifact
// and the structure POSTed after per-document uploads succeed.
func WriteProgram(w io.Writer, bundle *model.SubmissionBundle) error {
	if bundle == nil {
		return fmt.Errorf("WriteProgram: nil bundle")
	}

	payload := programJSON{
		RunID:  bundle.RunID,
		QRunID: bundle.QRunID,
	}

	for _, doc := range bundle.Documents {
		buf, err := marshalETDocument(doc)
		if err != nil {
			return fmt.Errorf("WriteProgram: document %s: %w", doc.Token, err)
		}
		payload.Configuration.Targets = append(payload.Configuration.Targets, buf)
	}

	for _, block := range bundle.Blocks {
		payload.Configuration.ObservingBlocks = append(payload.Configuration.ObservingBlocks, observingBlockJSON{
			Identifier:       tokenRefJSON{ClientToken: block.Token},
			TargetIdentifier: tokenRefJSON{ClientToken: block.TargetToken},
			InstrumentConfigRefs: []tokenRefJSON{
				{ServerToken: block.InstrumentCfg},
			},
		})
	}

	for _, group := range bundle.Groups {
		g := observingGroupJSON{Identifier: tokenRefJSON{ClientToken: group.Token}}
		for _, token := range group.BlockTokens {
			g.ObservingBlockRefs = append(g.ObservingBlockRefs, tokenRefJSON{ClientToken: token})
		}
		payload.Configuration.ObservingGroups = append(payload.Configuration.ObservingGroups, g)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("WriteProgram: encode failed: %w", err)
	}
	return nil
}

func marshalETDocument(doc *model.ETDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteETDocument(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

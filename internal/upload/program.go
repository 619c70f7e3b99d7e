package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/model"
)

// SubmitProgram POSTs the bundle's observing-block/group structure after
// the per-document uploads have succeeded. It shares the document retry
// policy: transient failures back off, content and credential rejections
// are terminal.
func (u *Uploader) SubmitProgram(ctx context.Context, bundle *model.SubmissionBundle, cred Credential) error {
	var body bytes.Buffer
	if err := core.WriteProgram(&body, bundle); err != nil {
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = u.initialWait

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := u.postProgram(ctx, bundle.RunID, body.Bytes(), cred)
		if err != nil && !errors.Is(err, ErrTransient) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(u.maxAttempts))
	if err != nil {
		return fmt.Errorf("submitting program structure for %s: %w", bundle.RunID, err)
	}
	return nil
}

func (u *Uploader) postProgram(ctx context.Context, runID string, body []byte, cred Credential) error {
	url := fmt.Sprintf("%s/programs/%s/observing_groups", u.baseURL, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(cred))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthRejected, readDiagnostic(resp.Body))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s", ErrRejected, readDiagnostic(resp.Body))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, readDiagnostic(resp.Body))
	}
}

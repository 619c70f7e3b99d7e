// Package upload delivers submission bundles to the remote scheduling
// API. Each document's POST is the unit of atomicity: documents succeed
// or fail independently, and a cancelled bundle leaves finished documents
// delivered and the rest untouched.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/internal/logging"
	"github.com/ossos-labs/mptrack/internal/observability"
	"github.com/ossos-labs/mptrack/model"
)

var (
	// ErrAuthRejected means the scheduler refused the bearer credential.
	// Retrying any further document with the same credential would fail
	// identically, so the bundle short-circuits.
	ErrAuthRejected = errors.New("credential rejected")

	// ErrRejected means the scheduler refused a document's content.
	ErrRejected = errors.New("document rejected")

	// ErrTransient marks a failure worth retrying: network errors,
	// timeouts, and 5xx responses.
	ErrTransient = errors.New("transient upload failure")
)

// Credential is an opaque bearer token. It is attached to request headers
// and nothing else: never logged, never persisted.
type Credential string

// Uploader submits ET documents to the scheduling API.
type Uploader struct {
	baseURL     string
	httpClient  *http.Client
	log         logging.Logger
	metrics     *observability.PipelineCollector
	maxAttempts uint
	initialWait time.Duration
	concurrency int
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithTimeout bounds each POST. Default 60 s.
func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) { u.httpClient.Timeout = d }
}

// WithMaxAttempts bounds retries per document, including the first
// attempt. Default 4.
func WithMaxAttempts(n uint) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxAttempts = n
		}
	}
}

// WithInitialBackoff sets the first retry delay. Default 1 s.
func WithInitialBackoff(d time.Duration) Option {
	return func(u *Uploader) { u.initialWait = d }
}

// WithConcurrency bounds how many documents upload at once. Default 4;
// 1 serialises the bundle.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log logging.Logger) Option {
	return func(u *Uploader) { u.log = log }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *observability.PipelineCollector) Option {
	return func(u *Uploader) { u.metrics = m }
}

// New creates an Uploader for the given API base URL.
func New(baseURL string, opts ...Option) *Uploader {
	u := &Uploader{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		log:         logging.Noop(),
		maxAttempts: 4,
		initialWait: time.Second,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type acceptedJSON struct {
	ServerToken string `json:"server_token"`
}

// Upload delivers every document in the bundle, in bundle order in the
// returned results. Documents upload concurrently; each retries
// independently on transient failures with exponential backoff. A
// credential rejection stops unstarted documents immediately, marking
// them rejected with the auth diagnostic and making no further requests.
//
// On context cancellation, results for already-finished documents are
// returned and unattempted documents get no result at all, so a rerun of
// the full bundle is safe.
func (u *Uploader) Upload(ctx context.Context, bundle *model.SubmissionBundle, cred Credential) []model.UploadResult {
	ctx, span := observability.StartSpan(ctx, "upload_bundle", "")
	defer span.End()

	results := make([]*model.UploadResult, len(bundle.Documents))
	var authDiag atomic.Pointer[string]

	sem := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup

	for i, doc := range bundle.Documents {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		// A credential already rejected earlier in the bundle fails every
		// remaining document the same way; skip the network round trip.
		if diag := authDiag.Load(); diag != nil {
			results[i] = &model.UploadResult{
				Token:      doc.Token,
				State:      model.DeliveryRejected,
				Diagnostic: *diag,
			}
			u.metrics.RecordUploadAttempt(model.DeliveryRejected.String())
			<-sem
			continue
		}

		wg.Add(1)
		go func(i int, doc *model.ETDocument) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			res := u.uploadDocument(ctx, bundle, doc, cred)
			if res.State == model.DeliveryTransientFailure && ctx.Err() != nil {
				// Cancelled mid-flight: the POST was not completed, so the
				// document counts as not attempted and gets no result.
				return
			}
			u.metrics.ObserveUploadDuration(time.Since(start).Seconds())
			u.metrics.RecordUploadAttempt(res.State.String())

			if res.State == model.DeliveryRejected && strings.HasPrefix(res.Diagnostic, authDiagnosticPrefix) {
				diag := res.Diagnostic
				authDiag.CompareAndSwap(nil, &diag)
			}
			results[i] = &res

			u.log.Info(ctx, "document upload finished",
				logging.String("token", doc.Token),
				logging.String("state", res.State.String()),
				logging.Int("attempts", res.Attempts),
			)
		}(i, doc)
	}
	wg.Wait()

	out := make([]model.UploadResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

const authDiagnosticPrefix = "authentication: "

// uploadDocument runs one document through the delivery state machine:
// Pending -> Sent -> {Accepted, Rejected, TransientFailure}. Transient
// failures retry with exponential backoff up to the attempt bound;
// rejections are terminal immediately.
func (u *Uploader) uploadDocument(ctx context.Context, bundle *model.SubmissionBundle, doc *model.ETDocument, cred Credential) model.UploadResult {
	result := model.UploadResult{Token: doc.Token, State: model.DeliveryPending}

	var body bytes.Buffer
	if err := core.WriteETDocument(&body, doc); err != nil {
		result.State = model.DeliveryRejected
		result.Diagnostic = err.Error()
		return result
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = u.initialWait

	serverID, err := backoff.Retry(ctx, func() (string, error) {
		result.Attempts++
		result.State = model.DeliverySent
		id, err := u.post(ctx, bundle.RunID, doc.Token, body.Bytes(), cred)
		if err != nil && !errors.Is(err, ErrTransient) {
			return "", backoff.Permanent(err)
		}
		return id, err
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(u.maxAttempts))

	switch {
	case err == nil:
		result.State = model.DeliveryAccepted
		result.ServerID = serverID
	case errors.Is(err, ErrAuthRejected):
		result.State = model.DeliveryRejected
		result.Diagnostic = authDiagnosticPrefix + diagnosticOf(err)
	case errors.Is(err, ErrRejected):
		result.State = model.DeliveryRejected
		result.Diagnostic = diagnosticOf(err)
	default:
		// Retries exhausted or context cancelled mid-flight.
		result.State = model.DeliveryTransientFailure
		result.Diagnostic = err.Error()
	}
	return result
}

// post performs exactly one POST of one document.
func (u *Uploader) post(ctx context.Context, runID, token string, body []byte, cred Credential) (string, error) {
	url := fmt.Sprintf("%s/programs/%s/targets/%s", u.baseURL, runID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(cred))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var accepted acceptedJSON
		if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
			// Accepted but unparseable body: the document made it.
			return "", nil
		}
		return accepted.ServerToken, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrAuthRejected, readDiagnostic(resp.Body))

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", fmt.Errorf("%w: %s", ErrRejected, readDiagnostic(resp.Body))

	default:
		return "", fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, readDiagnostic(resp.Body))
	}
}

// diagnosticOf strips the sentinel prefix, leaving the server's message
// verbatim.
func diagnosticOf(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrAuthRejected, ErrRejected} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func readDiagnostic(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(body) == 0 {
		return "no diagnostic"
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

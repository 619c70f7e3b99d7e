// Package ephemeris talks to the external astrometric service that
// predicts sky positions for minor planets. The service is consumed as a
// black box: one (designator, epoch) request, one position-and-rate
// response.
package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/internal/logging"
	"github.com/ossos-labs/mptrack/internal/observability"
	"github.com/ossos-labs/mptrack/model"
)

const defaultTimeout = 30 * time.Second

// Client queries the remote ephemeris service over HTTP. It implements
// core.EphemerisSource.
//
// The service contract: GET {base}/ephemeris?designator=X&epoch=RFC3339.
// 200 carries a prediction; 404 means the designator is unknown; 422
// means the designator resolved but no data exists for that epoch.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logging.Logger
	metrics    *observability.PipelineCollector
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. The default is 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log logging.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *observability.PipelineCollector) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client for the given service base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// predictionJSON is the service's response shape. Coordinates come in
// degrees and rates in degrees per day, matching the internal model.
type predictionJSON struct {
	Designator string  `json:"designator"`
	RA         float64 `json:"ra"`
	Dec        float64 `json:"dec"`
	RARate     float64 `json:"ra_rate"`
	DecRate    float64 `json:"dec_rate"`
	Mag        float64 `json:"mag"`
}

type errorJSON struct {
	Error string `json:"error"`
}

// Predict implements core.EphemerisSource with a single bounded HTTP
// request. Rates are returned verbatim from the service.
func (c *Client) Predict(ctx context.Context, designator string, epoch time.Time) (model.EphemerisSample, error) {
	var sample model.EphemerisSample

	q := url.Values{}
	q.Set("designator", designator)
	q.Set("epoch", epoch.UTC().Format(time.RFC3339))
	reqURL := c.baseURL + "/ephemeris?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return sample, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordEphemerisRequest("error")
		return sample, fmt.Errorf("querying ephemeris service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		c.metrics.RecordEphemerisRequest("unresolved")
		return sample, fmt.Errorf("%w: %s (%s)", core.ErrResolution, designator, readDiagnostic(resp.Body))
	case http.StatusUnprocessableEntity:
		c.metrics.RecordEphemerisRequest("gap")
		return sample, fmt.Errorf("%w: %s at %s (%s)", core.ErrEphemerisGap, designator,
			epoch.UTC().Format(time.RFC3339), readDiagnostic(resp.Body))
	default:
		c.metrics.RecordEphemerisRequest("error")
		return sample, fmt.Errorf("ephemeris service returned status %d", resp.StatusCode)
	}

	var pred predictionJSON
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		c.metrics.RecordEphemerisRequest("error")
		return sample, fmt.Errorf("decoding prediction: %w", err)
	}

	c.metrics.RecordEphemerisRequest("ok")
	c.log.Debug(ctx, "ephemeris prediction",
		logging.String("designator", designator),
		logging.String("epoch", epoch.UTC().Format(time.RFC3339)),
		logging.Float("ra", pred.RA),
		logging.Float("dec", pred.Dec),
	)

	return model.EphemerisSample{
		Epoch:   epoch.UTC(),
		RA:      pred.RA,
		Dec:     pred.Dec,
		RateRA:  pred.RARate,
		RateDec: pred.DecRate,
		Mag:     pred.Mag,
	}, nil
}

// readDiagnostic extracts the service's error message, tolerating plain
// text bodies.
func readDiagnostic(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(body) == 0 {
		return "no diagnostic"
	}
	var e errorJSON
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

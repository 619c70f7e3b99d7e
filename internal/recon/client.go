package recon

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ossos-labs/mptrack/internal/logging"
)

// List column headings. Some lists use alternate names for the same
// columns; both spellings are accepted.
const (
	colDesig      = "Desig"
	colDesigAlt   = "Object ID"
	colClass      = "DES Classification"
	colClassAlt   = "Type"
	colPosErr     = "TNO pos err"
	colPosErrAlt  = "PosErr"
	colEventTime  = "ET"
	minPosErr     = 0.10
	excludedClass = "CENTAURR"
)

// eventTimeLayout matches the list's event column, e.g. "2018 Sep 01 12:00:00".
const eventTimeLayout = "2006 Jan 2 15:04:05"

// CSVClient fetches a candidate list in CSV form and filters it to the
// bodies worth tracking: non-centaur TNOs whose positional uncertainty is
// large enough that astrometry helps, with any predicted event inside the
// observing window.
type CSVClient struct {
	listURL    string
	httpClient *http.Client
	log        logging.Logger
}

// NewCSVClient creates a client for the given list URL.
func NewCSVClient(listURL string, timeout time.Duration, log logging.Logger) *CSVClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logging.Noop()
	}
	return &CSVClient{
		listURL:    listURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// ListCandidates implements Lister.
func (c *CSVClient) ListCandidates(ctx context.Context, windowStart, windowEnd time.Time) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candidate list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, c.listURL)
	}

	candidates, err := ParseList(resp.Body, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	c.log.Info(ctx, "candidate list parsed",
		logging.String("url", c.listURL),
		logging.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// ParseList reads a CSV candidate list and applies the selection filter.
// Exported separately so a locally saved list file works the same way.
func ParseList(r io.Reader, windowStart, windowEnd time.Time) ([]Candidate, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // the lists are hand-maintained; tolerate ragged rows

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading list header: %w", err)
	}

	cols := indexColumns(header)
	desigIdx, ok := cols.desig()
	if !ok {
		return nil, fmt.Errorf("candidate list has no designator column")
	}

	var out []Candidate
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading list row: %w", err)
		}

		if desigIdx >= len(record) {
			continue
		}
		cand := Candidate{
			Designator: parseDesignator(strings.TrimSpace(record[desigIdx])),
		}
		if idx, ok := cols.class(); ok && idx < len(record) {
			cand.Class = strings.TrimSpace(record[idx])
		}
		if idx, ok := cols.posErr(); ok && idx < len(record) {
			cand.PosErrArcsec, _ = strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		}
		if idx, ok := cols.eventTime(); ok && idx < len(record) {
			if et, err := time.Parse(eventTimeLayout, strings.TrimSpace(record[idx])); err == nil {
				cand.EventTime = et.UTC()
			}
		}

		if !selectable(cand, windowStart, windowEnd) {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// selectable applies the tracking filter: centaurs are excluded, tiny
// positional errors need no follow-up, and listed events must fall inside
// the window.
func selectable(c Candidate, windowStart, windowEnd time.Time) bool {
	if c.Designator == "" {
		return false
	}
	if strings.EqualFold(c.Class, excludedClass) {
		return false
	}
	if c.PosErrArcsec <= minPosErr {
		return false
	}
	if !c.EventTime.IsZero() {
		if c.EventTime.Before(windowStart) || c.EventTime.After(windowEnd) {
			return false
		}
	}
	return true
}

// parseDesignator normalises a list designator. Numbered objects come
// through as "15760.0" or "15760 1993 SB"; provisional ones as "13UO17"
// with a two-digit year. Two-digit years below the cutoff are 2000s, the
// rest 1900s (the lists predate no minor planet past the cutoff year).
const provisionalCenturyCutoff = 50

func parseDesignator(raw string) string {
	if raw == "" {
		return ""
	}
	first := strings.Fields(raw)[0]
	if n, err := strconv.ParseFloat(first, 64); err == nil && n == float64(int(n)) {
		return strconv.Itoa(int(n))
	}

	if len(raw) < 4 {
		return raw
	}
	yy, err := strconv.Atoi(raw[0:2])
	if err != nil {
		return raw
	}
	century := 19
	if yy < provisionalCenturyCutoff {
		century = 20
	}
	return fmt.Sprintf("%d%02d %s", century, yy, strings.TrimSpace(raw[2:]))
}

type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	cols := make(columnIndex, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

func (c columnIndex) lookup(names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := c[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func (c columnIndex) desig() (int, bool)     { return c.lookup(colDesig, colDesigAlt) }
func (c columnIndex) class() (int, bool)     { return c.lookup(colClass, colClassAlt) }
func (c columnIndex) posErr() (int, bool)    { return c.lookup(colPosErr, colPosErrAlt) }
func (c columnIndex) eventTime() (int, bool) { return c.lookup(colEventTime) }

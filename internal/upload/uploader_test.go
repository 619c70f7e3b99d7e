package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/model"
)

func testBundle(t *testing.T, designators ...string) *model.SubmissionBundle {
	t.Helper()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	docs := make([]*model.ETDocument, 0, len(designators))
	for _, d := range designators {
		samples := make([]model.EphemerisSample, 5)
		for i := range samples {
			samples[i] = model.EphemerisSample{
				Epoch: start.Add(time.Duration(i) * 6 * time.Hour),
				RA:    181,
				Dec:   -5,
				Mag:   24.2,
			}
		}
		window := model.SampleWindow{Start: start, End: start.Add(24 * time.Hour), Cadence: 6 * time.Hour}
		doc, err := core.Build(model.Target{Designator: d, RunID: "16BP06"}, samples, window, model.SchemaVersionCFHTAPI)
		if err != nil {
			t.Fatalf("Build(%s): %v", d, err)
		}
		docs = append(docs, doc)
	}

	bundle, err := core.Assemble(docs, core.AssembleOptions{QRunID: "16BQ01"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return bundle
}

func fastUploader(baseURL string, opts ...Option) *Uploader {
	base := []Option{
		WithInitialBackoff(time.Millisecond),
		WithTimeout(5 * time.Second),
	}
	return New(baseURL, append(base, opts...)...)
}

func TestUpload_AllAccepted(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q", got)
		}
		if !strings.HasPrefix(r.URL.Path, "/programs/16BP06/targets/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"server_token": "srv-" + r.URL.Path})
	}))
	defer srv.Close()

	bundle := testBundle(t, "2013 UO17", "2004 EW95", "2007 OR10")
	results := fastUploader(srv.URL).Upload(context.Background(), bundle, "sekrit")

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.Token != bundle.Documents[i].Token {
			t.Errorf("result %d is %q, want bundle order preserved", i, res.Token)
		}
		if res.State != model.DeliveryAccepted {
			t.Errorf("result %d state = %s (%s)", i, res.State, res.Diagnostic)
		}
		if res.ServerID == "" {
			t.Errorf("result %d has no server token", i)
		}
		if res.Attempts != 1 {
			t.Errorf("result %d took %d attempts, want 1", i, res.Attempts)
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestUpload_OutcomesAreIndependent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/2007_OR10") {
			http.Error(w, `{"error":"ephemeris span too short"}`, http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2013 UO17", "2004 EW95", "2007 OR10")
	results := fastUploader(srv.URL).Upload(context.Background(), bundle, "sekrit")

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	byToken := map[string]model.UploadResult{}
	for _, res := range results {
		byToken[res.Token] = res
	}
	if got := byToken["2007_OR10"]; got.State != model.DeliveryRejected || got.Diagnostic != "ephemeris span too short" {
		t.Errorf("rejected doc = %+v", got)
	}
	if got := byToken["2007_OR10"].Attempts; got != 1 {
		t.Errorf("rejection retried: %d attempts", got)
	}
	for _, tok := range []string{"2013_UO17", "2004_EW95"} {
		if byToken[tok].State != model.DeliveryAccepted {
			t.Errorf("%s state = %s, want accepted despite sibling rejection", tok, byToken[tok].State)
		}
	}
}

func TestUpload_TransientRetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	failures := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		failures[r.URL.Path]++
		n := failures[r.URL.Path]
		mu.Unlock()
		if n <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2013 UO17")
	results := fastUploader(srv.URL).Upload(context.Background(), bundle, "sekrit")

	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].State != model.DeliveryAccepted {
		t.Fatalf("state = %s (%s)", results[0].State, results[0].Diagnostic)
	}
	if results[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", results[0].Attempts)
	}
}

func TestUpload_TransientExhaustsAttempts(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2013 UO17")
	results := fastUploader(srv.URL, WithMaxAttempts(2)).Upload(context.Background(), bundle, "sekrit")

	if len(results) != 1 || results[0].State != model.DeliveryTransientFailure {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", results[0].Attempts)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestUpload_AuthRejectionShortCircuits(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, `{"error":"token expired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2004 EW95", "2007 OR10", "2013 UO17")
	// Serialised so the rejection lands before the later documents start.
	results := fastUploader(srv.URL, WithConcurrency(1)).Upload(context.Background(), bundle, "stale")

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.State != model.DeliveryRejected {
			t.Errorf("result %d state = %s, want rejected", i, res.State)
		}
		if !strings.HasPrefix(res.Diagnostic, "authentication: ") {
			t.Errorf("result %d diagnostic = %q, want auth-tagged", i, res.Diagnostic)
		}
		if !strings.Contains(res.Diagnostic, "token expired") {
			t.Errorf("result %d diagnostic = %q, server message lost", i, res.Diagnostic)
		}
	}
	// One request total: the rejection is not retried and the remaining
	// documents never hit the network.
	if got := requests.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestUpload_CancellationDropsUnfinished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		// Second document: pull the plug mid-flight.
		cancel()
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2004 EW95", "2007 OR10", "2013 UO17")
	results := fastUploader(srv.URL, WithConcurrency(1)).Upload(ctx, bundle, "sekrit")

	if len(results) != 1 {
		t.Fatalf("got %d results %+v, want only the finished document", len(results), results)
	}
	if results[0].Token != "2004_EW95" || results[0].State != model.DeliveryAccepted {
		t.Errorf("surviving result = %+v", results[0])
	}
}

func TestSubmitProgram(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("program body is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2013 UO17")
	if err := fastUploader(srv.URL).SubmitProgram(context.Background(), bundle, "sekrit"); err != nil {
		t.Fatalf("SubmitProgram: %v", err)
	}
	if gotPath != "/programs/16BP06/observing_groups" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestSubmitProgram_Rejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown runid"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	bundle := testBundle(t, "2013 UO17")
	err := fastUploader(srv.URL).SubmitProgram(context.Background(), bundle, "sekrit")
	if err == nil {
		t.Fatalf("rejected program submission returned nil error")
	}
	if !strings.Contains(err.Error(), "unknown runid") {
		t.Errorf("err = %v, server message lost", err)
	}
}

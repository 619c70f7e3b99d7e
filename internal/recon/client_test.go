package recon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleList = `Desig,DES Classification,TNO pos err,ET
13UO17,RESONANT,0.35,2026 Feb 03 08:00:00
04EW95,RESONANT,0.05,2026 Feb 03 08:00:00
95GO,CENTAURR,0.80,2026 Feb 03 08:00:00
07OR10,SCATNEAR,0.22,2026 Jun 01 00:00:00
15760.0,CLASSICAL,0.18,2026 Feb 04 12:00:00
`

func parseWindow(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return start, start.Add(7 * 24 * time.Hour)
}

func TestParseList_Filter(t *testing.T) {
	start, end := parseWindow(t)
	candidates, err := ParseList(strings.NewReader(sampleList), start, end)
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}

	// 04EW95 has a tiny positional error, 95GO is a centaur, and
	// 07OR10's event falls outside the window.
	want := []string{"2013 UO17", "15760"}
	if len(candidates) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(candidates), candidates, len(want))
	}
	for i, c := range candidates {
		if c.Designator != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, c.Designator, want[i])
		}
	}
}

func TestParseList_AlternateColumnNames(t *testing.T) {
	list := `Object ID,Type,PosErr,ET
13UO17,RESONANT,0.35,2026 Feb 03 08:00:00
`
	start, end := parseWindow(t)
	candidates, err := ParseList(strings.NewReader(list), start, end)
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Designator != "2013 UO17" {
		t.Fatalf("candidates = %v", candidates)
	}
}

func TestParseList_ToleratesRaggedRows(t *testing.T) {
	list := `Desig,DES Classification,TNO pos err,ET
13UO17,RESONANT,0.35,2026 Feb 03 08:00:00

99RZ253,RESONANT
`
	start, end := parseWindow(t)
	candidates, err := ParseList(strings.NewReader(list), start, end)
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	// The short row has no positional error, so it drops out of the
	// selection rather than failing the parse.
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
}

func TestParseList_MissingDesignatorColumn(t *testing.T) {
	start, end := parseWindow(t)
	if _, err := ParseList(strings.NewReader("a,b,c\n1,2,3\n"), start, end); err == nil {
		t.Fatalf("headerless list parsed without error")
	}
}

func TestParseDesignator(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"13UO17", "2013 UO17"},
		{"95GO", "1995 GO"},
		{"15760.0", "15760"},
		{"15760 1993 SB", "15760"},
		{"", ""},
	}
	for _, c := range cases {
		if got := parseDesignator(c.raw); got != c.want {
			t.Errorf("parseDesignator(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestListCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	client := NewCSVClient(srv.URL, 5*time.Second, nil)
	start, end := parseWindow(t)
	candidates, err := client.ListCandidates(context.Background(), start, end)
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
}

func TestListCandidates_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewCSVClient(srv.URL, 5*time.Second, nil)
	start, end := parseWindow(t)
	if _, err := client.ListCandidates(context.Background(), start, end); err == nil {
		t.Fatalf("404 list fetch succeeded")
	}
}

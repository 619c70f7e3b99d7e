package ephemeris

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/model"
)

// countingSource records how often each (designator, epoch) pair is
// asked for, and can be told to fail.
type countingSource struct {
	calls map[string]int
	fail  error
}

func newCountingSource() *countingSource {
	return &countingSource{calls: map[string]int{}}
}

func (s *countingSource) Predict(_ context.Context, designator string, epoch time.Time) (model.EphemerisSample, error) {
	s.calls[designator+"|"+epoch.UTC().Format(time.RFC3339)]++
	if s.fail != nil {
		return model.EphemerisSample{}, s.fail
	}
	return model.EphemerisSample{
		Epoch: epoch.UTC(),
		RA:    181.25,
		Dec:   -4.5,
		Mag:   24.2,
	}, nil
}

func (s *countingSource) total() int {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func openTestCache(t *testing.T, src core.EphemerisSource) *CachedSource {
	t.Helper()
	cache, err := OpenCache(t.TempDir(), src)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachedSource_HitAvoidsSecondQuery(t *testing.T) {
	src := newCountingSource()
	cache := openTestCache(t, src)
	epoch := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first, err := cache.Predict(context.Background(), "2013 UO17", epoch)
	if err != nil {
		t.Fatalf("first Predict: %v", err)
	}
	second, err := cache.Predict(context.Background(), "2013 UO17", epoch)
	if err != nil {
		t.Fatalf("second Predict: %v", err)
	}

	if src.total() != 1 {
		t.Errorf("source queried %d times, want 1", src.total())
	}
	if first != second {
		t.Errorf("cached sample differs: %+v vs %+v", first, second)
	}
}

func TestCachedSource_DistinctKeys(t *testing.T) {
	src := newCountingSource()
	cache := openTestCache(t, src)
	epoch := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, q := range []struct {
		designator string
		epoch      time.Time
	}{
		{"2013 UO17", epoch},
		{"2013 UO17", epoch.Add(6 * time.Hour)},
		{"2004 EW95", epoch},
	} {
		if _, err := cache.Predict(context.Background(), q.designator, q.epoch); err != nil {
			t.Fatalf("Predict(%s, %s): %v", q.designator, q.epoch, err)
		}
	}
	if src.total() != 3 {
		t.Errorf("source queried %d times, want one per distinct key", src.total())
	}
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	src := newCountingSource()
	cache := openTestCache(t, src)
	epoch := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	src.fail = fmt.Errorf("upstream down")
	if _, err := cache.Predict(context.Background(), "2013 UO17", epoch); err == nil {
		t.Fatalf("failing source produced a sample")
	}

	src.fail = nil
	if _, err := cache.Predict(context.Background(), "2013 UO17", epoch); err != nil {
		t.Fatalf("Predict after recovery: %v", err)
	}
	// Both calls reached the source: the failure was not stored.
	if src.total() != 2 {
		t.Errorf("source queried %d times, want 2", src.total())
	}
}

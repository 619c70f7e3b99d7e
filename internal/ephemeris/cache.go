package ephemeris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/internal/logging"
	"github.com/ossos-labs/mptrack/internal/observability"
	"github.com/ossos-labs/mptrack/model"
)

// defaultCacheTTL keeps cached predictions for a week. Minor-planet
// ephemerides drift as astrometry improves, so entries must expire.
const defaultCacheTTL = 7 * 24 * time.Hour

// CachedSource wraps an EphemerisSource with a persistent BadgerDB cache
// keyed by (designator, epoch). Re-running a sampling window against a
// deterministic source then costs no network traffic and stays
// byte-identical.
type CachedSource struct {
	src     core.EphemerisSource
	db      *badger.DB
	ttl     time.Duration
	log     logging.Logger
	metrics *observability.PipelineCollector
}

// CacheOption configures a CachedSource.
type CacheOption func(*CachedSource)

// WithCacheTTL overrides the entry lifetime.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedSource) { c.ttl = ttl }
}

// WithCacheLogger attaches a logger.
func WithCacheLogger(log logging.Logger) CacheOption {
	return func(c *CachedSource) { c.log = log }
}

// WithCacheMetrics attaches a metrics collector.
func WithCacheMetrics(m *observability.PipelineCollector) CacheOption {
	return func(c *CachedSource) { c.metrics = m }
}

// OpenCache opens (or creates) a cache at path wrapping src.
func OpenCache(path string, src core.EphemerisSource, opts ...CacheOption) (*CachedSource, error) {
	badgerOpts := badger.DefaultOptions(path)
	badgerOpts.Logger = nil // badger's own logging is too chatty for a CLI

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening ephemeris cache: %w", err)
	}

	c := &CachedSource{
		src: src,
		db:  db,
		ttl: defaultCacheTTL,
		log: logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying database.
func (c *CachedSource) Close() error {
	return c.db.Close()
}

// Predict serves from the cache when possible, otherwise queries the
// wrapped source and stores the result. Source errors are never cached:
// a gap at one epoch may fill in once the service updates its orbits.
func (c *CachedSource) Predict(ctx context.Context, designator string, epoch time.Time) (model.EphemerisSample, error) {
	key := cacheKey(designator, epoch)

	var cached []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		cached, err = item.ValueCopy(nil)
		return err
	})
	if err == nil {
		var sample model.EphemerisSample
		if jsonErr := json.Unmarshal(cached, &sample); jsonErr == nil {
			c.metrics.RecordCacheHit()
			return sample, nil
		}
		// Unreadable entry: fall through and overwrite it.
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return model.EphemerisSample{}, fmt.Errorf("reading ephemeris cache: %w", err)
	}

	sample, err := c.src.Predict(ctx, designator, epoch)
	if err != nil {
		return sample, err
	}

	encoded, err := json.Marshal(sample)
	if err != nil {
		return sample, fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, encoded).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	}); err != nil {
		// A failed cache write is not a failed prediction.
		c.log.Warn(ctx, "ephemeris cache write failed",
			logging.String("designator", designator), logging.Err(err))
	}
	return sample, nil
}

func cacheKey(designator string, epoch time.Time) []byte {
	return []byte("eph|" + designator + "|" + epoch.UTC().Format(time.RFC3339))
}

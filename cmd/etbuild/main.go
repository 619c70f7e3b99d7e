package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/internal/config"
	"github.com/ossos-labs/mptrack/internal/ephemeris"
	"github.com/ossos-labs/mptrack/internal/logging"
	"github.com/ossos-labs/mptrack/internal/observability"
	"github.com/ossos-labs/mptrack/internal/recon"
	"github.com/ossos-labs/mptrack/model"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (defaults apply when empty)")
	runID := flag.String("runid", "", "observing program identifier, e.g. 16BP06 (required)")
	blockID := flag.String("block", "", "optional agency block identifier attached to every target")
	startStr := flag.String("start", "", "window start, RFC 3339 UTC (required)")
	endStr := flag.String("end", "", "window end, RFC 3339 UTC (required)")
	cadence := flag.Duration("cadence", 24*time.Hour, "spacing between ephemeris points")
	outDir := flag.String("out", ".", "directory the tracking documents are written into")
	visibility := flag.Bool("visibility", false, "drop epochs the site cannot observe before building")
	fromRecon := flag.Bool("from-recon", false, "take targets from the candidate prediction list instead of arguments")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	if *runID == "" {
		log.Error(ctx, "-runid is required")
		os.Exit(1)
	}

	start, end, err := parseWindow(*startStr, *endStr)
	if err != nil {
		log.Error(ctx, "bad window", logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewPipelineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	designators := flag.Args()
	if *fromRecon {
		lister := recon.NewCSVClient(cfg.Recon.ListURL, cfg.Recon.Timeout.D(), log)
		candidates, err := lister.ListCandidates(ctx, start, end)
		if err != nil {
			log.Error(ctx, "failed to fetch candidate list", logging.Err(err))
			os.Exit(1)
		}
		for _, c := range candidates {
			designators = append(designators, c.Designator)
		}
	}
	if len(designators) == 0 {
		log.Error(ctx, "no targets: pass designators as arguments or use -from-recon")
		os.Exit(1)
	}

	targets := make([]model.Target, 0, len(designators))
	for _, d := range designators {
		targets = append(targets, model.Target{Designator: d, RunID: *runID, BlockID: *blockID})
	}

	var src core.EphemerisSource = ephemeris.NewClient(cfg.Ephemeris.BaseURL,
		ephemeris.WithTimeout(cfg.Ephemeris.Timeout.D()),
		ephemeris.WithLogger(log),
		ephemeris.WithMetrics(collector),
	)
	if cfg.Ephemeris.CachePath != "" {
		cached, err := ephemeris.OpenCache(cfg.Ephemeris.CachePath, src,
			ephemeris.WithCacheTTL(cfg.Ephemeris.CacheTTL.D()),
			ephemeris.WithCacheLogger(log),
			ephemeris.WithCacheMetrics(collector),
		)
		if err != nil {
			log.Error(ctx, "failed to open ephemeris cache", logging.Err(err))
			os.Exit(1)
		}
		defer cached.Close()
		src = cached
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Error(ctx, "failed to create output directory", logging.String("dir", *outDir), logging.Err(err))
		os.Exit(1)
	}

	constraint := cfg.Constraint()
	outcomes := core.SampleAll(ctx, src, targets, start, end, *cadence)

	failed, skipped := 0, 0
	for _, out := range outcomes {
		path, points, err := buildOne(out, *outDir, *visibility, constraint, *cadence)
		switch {
		case errors.Is(err, errNotObservable):
			// Not a failure: the site simply cannot see this target in
			// the window.
			skipped++
			fmt.Printf("%-12s skipped %v\n", out.Target.Designator, err)
			log.Info(ctx, "target not observable, skipping",
				logging.String("designator", out.Target.Designator))
		case err != nil:
			failed++
			fmt.Printf("%-12s FAILED  %v\n", out.Target.Designator, err)
			log.Warn(ctx, "target failed", logging.String("designator", out.Target.Designator), logging.Err(err))
		default:
			collector.RecordDocumentBuilt()
			fmt.Printf("%-12s ok      %d points -> %s\n", out.Target.Designator, points, path)
		}
	}

	fmt.Printf("%d/%d documents written, %d skipped\n",
		len(outcomes)-failed-skipped, len(outcomes), skipped)
	if failed > 0 {
		os.Exit(1)
	}
}

// errNotObservable marks a target the visibility constraint leaves
// nothing of: no observable epochs, or an up-time below the minimum.
var errNotObservable = errors.New("not observable from the site")

// buildOne turns one sampling outcome into a tracking document on disk
// and reports the point count that survived.
func buildOne(out core.TargetOutcome, dir string, useVisibility bool, constraint core.VisibilityConstraint, cadence time.Duration) (string, int, error) {
	if out.Err != nil {
		return "", 0, out.Err
	}

	samples := out.Samples
	window := out.Window
	if useVisibility {
		samples = constraint.Filter(samples)
		if len(samples) == 0 {
			return "", 0, fmt.Errorf("%w: %s", errNotObservable, constraint.Site.Name)
		}
		rebuilt, err := core.RebuildWindow(samples, cadence)
		if err != nil {
			return "", 0, err
		}
		window = rebuilt
	}

	doc, err := core.Build(out.Target, samples, window, model.SchemaVersionCFHTAPI)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, doc.Token+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	if err := core.WriteETDocument(f, doc); err != nil {
		return "", 0, err
	}
	return path, len(doc.Samples), nil
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-start and -end are required")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -end: %w", err)
	}
	return start, end, nil
}

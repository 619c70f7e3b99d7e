package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ossos-labs/mptrack/core"
	"github.com/ossos-labs/mptrack/internal/config"
	"github.com/ossos-labs/mptrack/internal/logging"
	"github.com/ossos-labs/mptrack/internal/observability"
	"github.com/ossos-labs/mptrack/internal/upload"
	"github.com/ossos-labs/mptrack/model"
)

// tokenEnv names the environment variable carrying the bearer credential.
// The credential never appears in configuration files or logs.
const tokenEnv = "MPTRACK_TOKEN"

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (defaults apply when empty)")
	runID := flag.String("runid", "", "observing program identifier, e.g. 16BP06 (required)")
	qRunID := flag.String("qrunid", "", "queue-run identifier used in observing-group tokens (required)")
	mode := flag.String("mode", "api", "delivery mode: api (authenticated upload) or print (write program for manual submission)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	if *runID == "" || *qRunID == "" {
		log.Error(ctx, "-runid and -qrunid are required")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		log.Error(ctx, "no tracking documents: pass the JSON files as arguments")
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
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	docs, err := readDocuments(flag.Args())
	if err != nil {
		log.Error(ctx, "failed to read tracking documents", logging.Err(err))
		os.Exit(1)
	}

	bundle, err := core.Assemble(docs, core.AssembleOptions{
		RunID:  *runID,
		QRunID: *qRunID,
	})
	if err != nil {
		log.Error(ctx, "failed to assemble submission bundle", logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "bundle assembled",
		logging.String("bundle", bundle.ID),
		logging.Int("documents", len(bundle.Documents)),
		logging.Int("groups", len(bundle.Groups)),
	)

	var results []model.UploadResult
	switch *mode {
	case "print":
		printer := &upload.Printer{Out: os.Stdout, Log: log}
		results, err = printer.Deliver(ctx, bundle)
		if err != nil {
			log.Error(ctx, "failed to write program", logging.Err(err))
			os.Exit(1)
		}
	case "api":
		cred := upload.Credential(os.Getenv(tokenEnv))
		if cred == "" {
			log.Error(ctx, "missing credential", logging.String("env", tokenEnv))
			os.Exit(1)
		}
		uploader := upload.New(cfg.Upload.BaseURL,
			upload.WithTimeout(cfg.Upload.Timeout.D()),
			upload.WithMaxAttempts(cfg.Upload.MaxAttempts),
			upload.WithInitialBackoff(cfg.Upload.InitialBackoff.D()),
			upload.WithConcurrency(cfg.Upload.Concurrency),
			upload.WithLogger(log),
			upload.WithMetrics(collector),
		)
		results = uploader.Upload(ctx, bundle, cred)
		if allAccepted(results, len(bundle.Documents)) {
			if err := uploader.SubmitProgram(ctx, bundle, cred); err != nil {
				log.Error(ctx, "failed to submit observing program", logging.Err(err))
				os.Exit(1)
			}
			log.Info(ctx, "observing program submitted", logging.String("runid", bundle.RunID))
		}
	default:
		log.Error(ctx, "unknown mode", logging.String("mode", *mode))
		os.Exit(1)
	}

	failed := report(results, len(bundle.Documents))

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func readDocuments(paths []string) ([]*model.ETDocument, error) {
	docs := make([]*model.ETDocument, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		doc, err := core.ReadETDocument(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// allAccepted reports whether every document in the bundle got a result
// and every result is an acceptance.
func allAccepted(results []model.UploadResult, want int) bool {
	if len(results) != want {
		return false
	}
	for _, r := range results {
		if r.State != model.DeliveryAccepted {
			return false
		}
	}
	return true
}

// report prints one status line per result and returns how many
// documents did not land.
func report(results []model.UploadResult, want int) int {
	failed := want - len(results)
	for _, r := range results {
		switch r.State {
		case model.DeliveryAccepted, model.DeliveryManualRequired:
			fmt.Printf("%-24s %s\n", r.Token, r.State)
		default:
			failed++
			if r.Diagnostic != "" {
				fmt.Printf("%-24s %s  %s\n", r.Token, r.State, r.Diagnostic)
			} else {
				fmt.Printf("%-24s %s\n", r.Token, r.State)
			}
		}
	}
	if failed > 0 {
		fmt.Printf("%d/%d documents not delivered\n", failed, want)
	}
	return failed
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	return srv
}

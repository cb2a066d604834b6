package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/leadscout/browser"
	"github.com/aluiziolira/leadscout/config"
	"github.com/aluiziolira/leadscout/models"
	"github.com/aluiziolira/leadscout/pipeline"
	"github.com/aluiziolira/leadscout/scraper"
	"github.com/aluiziolira/leadscout/snapshot"
)

type flags struct {
	niche, region, state string
	maxRecords           int
	source, snapshotURL  string
	sinks                string
	csvFile, jsonFile    string
	sqliteFile           string
	firestoreProject     string
	credentials          string
	headless             bool
	batchTimeout         time.Duration
	configFile           string
	verbose              bool
	metricsAddr          string
}

func main() {
	defaults := config.DefaultConfig()
	var f flags
	flag.StringVar(&f.niche, "niche", defaults.Niche, "Business niche to prospect")
	flag.StringVar(&f.region, "region", defaults.Region, "City or region to search")
	flag.StringVar(&f.state, "state", defaults.State, "State abbreviation appended to the search")
	flag.IntVar(&f.maxRecords, "max", defaults.MaxRecords, "Maximum listings to process")
	flag.StringVar(&f.source, "source", defaults.Source, "Listing source: browser or snapshot")
	flag.StringVar(&f.snapshotURL, "snapshot-url", defaults.SnapshotURL, "Archived results page (snapshot source)")
	flag.StringVar(&f.sinks, "sinks", "csv,json", "Comma-separated sinks: csv, json, sqlite, firestore")
	flag.StringVar(&f.csvFile, "csv", defaults.CSVFile, "CSV output path")
	flag.StringVar(&f.jsonFile, "json", defaults.JSONFile, "JSON output path")
	flag.StringVar(&f.sqliteFile, "sqlite", defaults.SQLiteFile, "SQLite output path")
	flag.StringVar(&f.firestoreProject, "firestore-project", defaults.FirestoreProject, "Firestore project ID")
	flag.StringVar(&f.credentials, "credentials", defaults.CredentialsFile, "Service account key for Firestore")
	flag.BoolVar(&f.headless, "headless", defaults.Headless, "Run Chrome headless")
	flag.DurationVar(&f.batchTimeout, "batch-timeout", defaults.BatchTimeout, "Overall batch deadline (0 disables)")
	flag.StringVar(&f.configFile, "config", "", "YAML batch file")
	flag.BoolVar(&f.verbose, "v", false, "Enable verbose logging")
	flag.StringVar(&f.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(f.verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := buildConfig(f)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("prospecting failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildConfig layers defaults, the YAML file, .env and LEADSCOUT_* variables,
// then the flags given on the command line.
func buildConfig(f flags) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if f.configFile != "" {
		fc, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		fc.Apply(cfg)
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "niche":
			cfg.Niche = f.niche
		case "region":
			cfg.Region = f.region
		case "state":
			cfg.State = f.state
		case "max":
			cfg.MaxRecords = f.maxRecords
		case "source":
			cfg.Source = f.source
		case "snapshot-url":
			cfg.SnapshotURL = f.snapshotURL
		case "sinks":
			cfg.Sinks = config.ParseSinks(f.sinks)
		case "csv":
			cfg.CSVFile = f.csvFile
		case "json":
			cfg.JSONFile = f.jsonFile
		case "sqlite":
			cfg.SQLiteFile = f.sqliteFile
		case "firestore-project":
			cfg.FirestoreProject = f.firestoreProject
		case "credentials":
			cfg.CredentialsFile = f.credentials
		case "headless":
			cfg.Headless = f.headless
		case "batch-timeout":
			cfg.BatchTimeout = f.batchTimeout
		case "metrics-addr":
			cfg.MetricsAddr = f.metricsAddr
		}
	})
	cfg.Verbose = f.verbose
	return cfg, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current listing")
	}()

	sink, err := createSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create sinks: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Error("close sinks", slog.Any("error", err))
		}
	}()

	nav, err := createNavigator(cfg)
	if err != nil {
		return fmt.Errorf("create navigator: %w", err)
	}
	defer nav.Close()

	s, err := scraper.NewScraper(cfg, nav)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p, err := pipeline.NewPipeline(sink, cfg)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	query := models.Query{
		Niche:      cfg.Niche,
		Region:     cfg.Region,
		State:      cfg.State,
		MaxRecords: cfg.MaxRecords,
	}
	slog.Info("starting batch",
		slog.String("niche", query.Niche),
		slog.String("region", query.Region),
		slog.String("source", cfg.Source),
		slog.Int("max", query.MaxRecords),
	)

	result, runErr := s.Run(ctx, query, p)
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
	}

	// a canceled batch still exports what it gathered
	flushCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	flushErr := p.Flush(flushCtx)
	if flushErr == nil {
		s.Metrics.AddExported(len(p.Leads()))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if result != nil {
		printSummary(result, cfg, p.GetMetrics())
	}
	return errors.Join(runErr, flushErr)
}

func createNavigator(cfg *config.Config) (scraper.Navigator, error) {
	switch cfg.Source {
	case config.SourceSnapshot:
		return snapshot.New(cfg), nil
	case config.SourceBrowser:
		return browser.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported source: %s", cfg.Source)
	}
}

func createSink(ctx context.Context, cfg *config.Config) (pipeline.RecordSink, error) {
	var sinks []pipeline.RecordSink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	for _, name := range cfg.Sinks {
		var (
			sink pipeline.RecordSink
			err  error
		)
		switch name {
		case config.SinkCSV:
			sink, err = pipeline.NewCSVSink(cfg.CSVFile)
		case config.SinkJSON:
			sink, err = pipeline.NewJSONSink(cfg.JSONFile)
		case config.SinkSQLite:
			sink, err = pipeline.OpenSQLiteSink(cfg.SQLiteFile)
		case config.SinkFirestore:
			sink, err = pipeline.NewFirestoreSink(ctx, cfg.FirestoreProject, cfg.FirestoreCollection, cfg.CredentialsFile)
		default:
			err = fmt.Errorf("unsupported sink: %s", name)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	multi, err := pipeline.NewMultiSink(sinks...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return multi, nil
}

func printSummary(result *models.BatchResult, cfg *config.Config, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Canceled {
		fmt.Println("Batch interrupted")
	} else {
		fmt.Println("Batch complete")
	}

	fmt.Printf("  Query:         %s em %s, %s\n", result.Query.Niche, result.Query.Region, result.Query.State)
	fmt.Printf("  Listings:      %d found, %d attempted, %d skipped\n", result.Found, result.Attempted, result.Skipped)
	fmt.Printf("  Leads:         %d\n", len(result.Leads))

	var noSite, noSocial, dialable int
	for _, lead := range result.Leads {
		if lead.WebsiteQuality == models.QualityNone {
			noSite++
		}
		if lead.Instagram == models.NotFound {
			noSocial++
		}
		if lead.WhatsApp != "" {
			dialable++
		}
	}
	fmt.Printf("  Without site:  %d\n", noSite)
	fmt.Printf("  No social:     %d\n", noSocial)
	fmt.Printf("  WhatsApp:      %d\n", dialable)

	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	if len(result.StrategyHits) > 0 {
		fmt.Printf("  Strategies:    %v\n", result.StrategyHits)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Sinks:         %v\n", cfg.Sinks)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

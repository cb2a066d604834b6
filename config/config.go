package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Sources a batch can read listings from.
const (
	SourceBrowser  = "browser"
	SourceSnapshot = "snapshot"
)

// Sink names accepted in Config.Sinks.
const (
	SinkCSV       = "csv"
	SinkJSON      = "json"
	SinkSQLite    = "sqlite"
	SinkFirestore = "firestore"
)

// Config holds scraper configuration.
type Config struct {
	Niche      string
	Region     string
	State      string
	MaxRecords int

	Source        string // browser or snapshot
	SearchBaseURL string
	SnapshotURL   string
	Headless      bool
	UserAgent     string

	ResultsTimeout   time.Duration
	DetailTimeout    time.Duration
	BatchTimeout     time.Duration // zero disables the overall deadline
	SettleDelay      time.Duration
	ScrollPause      time.Duration
	FeedScrollRounds int
	PanelScrollSteps int
	ListingInterval  time.Duration
	DedupeMaxSize    int

	Sinks               []string
	CSVFile             string
	JSONFile            string
	SQLiteFile          string
	FirestoreProject    string
	FirestoreCollection string
	CredentialsFile     string

	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns the defaults used for the Belém dental-clinic demo batch.
func DefaultConfig() *Config {
	return &Config{
		Niche:      "Clínica Odontológica",
		Region:     "Belém",
		State:      "PA",
		MaxRecords: 20,

		Source:        SourceBrowser,
		SearchBaseURL: "https://www.google.com.br/maps/search/",
		Headless:      true,
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",

		ResultsTimeout:   20 * time.Second,
		DetailTimeout:    8 * time.Second,
		BatchTimeout:     0,
		SettleDelay:      3 * time.Second,
		ScrollPause:      800 * time.Millisecond,
		FeedScrollRounds: 5,
		PanelScrollSteps: 3,
		ListingInterval:  time.Second,
		DedupeMaxSize:    10000,

		Sinks:               []string{SinkCSV, SinkJSON},
		CSVFile:             "output/leads.csv",
		JSONFile:            "output/leads.json",
		SQLiteFile:          "output/leads.db",
		FirestoreCollection: "leads",
		CredentialsFile:     "serviceAccountKey.json",

		Verbose:     false,
		MetricsAddr: "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Niche) == "" {
		return fmt.Errorf("niche cannot be empty")
	}
	if strings.TrimSpace(c.Region) == "" {
		return fmt.Errorf("region cannot be empty")
	}
	if c.MaxRecords <= 0 {
		return fmt.Errorf("max records must be positive")
	}

	switch c.Source {
	case SourceBrowser:
		if err := validateBaseURL("search base URL", c.SearchBaseURL); err != nil {
			return err
		}
		if c.UserAgent == "" {
			return fmt.Errorf("user agent cannot be empty")
		}
	case SourceSnapshot:
		if err := validateBaseURL("snapshot URL", c.SnapshotURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("source must be %s or %s", SourceBrowser, SourceSnapshot)
	}

	if c.ResultsTimeout <= 0 {
		return fmt.Errorf("results timeout must be positive")
	}
	if c.DetailTimeout <= 0 {
		return fmt.Errorf("detail timeout must be positive")
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("batch timeout cannot be negative")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.ScrollPause < 0 {
		return fmt.Errorf("scroll pause cannot be negative")
	}
	if c.FeedScrollRounds < 0 {
		return fmt.Errorf("feed scroll rounds cannot be negative")
	}
	if c.PanelScrollSteps <= 0 {
		return fmt.Errorf("panel scroll steps must be positive")
	}
	if c.ListingInterval < 0 {
		return fmt.Errorf("listing interval cannot be negative")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	if len(c.Sinks) == 0 {
		return fmt.Errorf("at least one sink is required")
	}
	for _, sink := range c.Sinks {
		switch sink {
		case SinkCSV:
			if c.CSVFile == "" {
				return fmt.Errorf("csv file cannot be empty")
			}
		case SinkJSON:
			if c.JSONFile == "" {
				return fmt.Errorf("json file cannot be empty")
			}
		case SinkSQLite:
			if c.SQLiteFile == "" {
				return fmt.Errorf("sqlite file cannot be empty")
			}
		case SinkFirestore:
			if c.FirestoreProject == "" {
				return fmt.Errorf("firestore project cannot be empty")
			}
			if c.FirestoreCollection == "" {
				return fmt.Errorf("firestore collection cannot be empty")
			}
		default:
			return fmt.Errorf("unknown sink %q (want csv, json, sqlite or firestore)", sink)
		}
	}

	return nil
}

// HasSink reports whether name is one of the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func validateBaseURL(label, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", label)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", label, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", label)
	}
	return nil
}

// ParseSinks splits a comma-separated sink list, dropping blanks and duplicates.
func ParseSinks(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

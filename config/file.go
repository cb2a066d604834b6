package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML schema of a batch file. Zero values leave the
// corresponding Config field untouched.
type FileConfig struct {
	Query struct {
		Niche      string `yaml:"niche"`
		Region     string `yaml:"region"`
		State      string `yaml:"state"`
		MaxRecords int    `yaml:"maxRecords"`
	} `yaml:"query"`

	Source struct {
		Kind          string `yaml:"kind"`
		SearchBaseURL string `yaml:"searchBaseURL"`
		SnapshotURL   string `yaml:"snapshotURL"`
		Headless      *bool  `yaml:"headless"`
		UserAgent     string `yaml:"userAgent"`
	} `yaml:"source"`

	Timing struct {
		ResultsTimeout   time.Duration `yaml:"resultsTimeout"`
		DetailTimeout    time.Duration `yaml:"detailTimeout"`
		BatchTimeout     time.Duration `yaml:"batchTimeout"`
		SettleDelay      time.Duration `yaml:"settleDelay"`
		ScrollPause      time.Duration `yaml:"scrollPause"`
		FeedScrollRounds int           `yaml:"feedScrollRounds"`
		PanelScrollSteps int           `yaml:"panelScrollSteps"`
		ListingInterval  time.Duration `yaml:"listingInterval"`
	} `yaml:"timing"`

	Output struct {
		Sinks               []string `yaml:"sinks"`
		CSVFile             string   `yaml:"csv"`
		JSONFile            string   `yaml:"json"`
		SQLiteFile          string   `yaml:"sqlite"`
		FirestoreProject    string   `yaml:"firestoreProject"`
		FirestoreCollection string   `yaml:"firestoreCollection"`
		CredentialsFile     string   `yaml:"credentials"`
	} `yaml:"output"`

	MetricsAddr string `yaml:"metricsAddr"`
}

// LoadFile reads a YAML batch file.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse yaml %s: %w", path, err)
	}
	return fc, nil
}

// Apply overlays the non-zero values of fc onto cfg.
func (fc FileConfig) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	setString(&cfg.Niche, fc.Query.Niche)
	setString(&cfg.Region, fc.Query.Region)
	setString(&cfg.State, fc.Query.State)
	setInt(&cfg.MaxRecords, fc.Query.MaxRecords)

	setString(&cfg.Source, fc.Source.Kind)
	setString(&cfg.SearchBaseURL, fc.Source.SearchBaseURL)
	setString(&cfg.SnapshotURL, fc.Source.SnapshotURL)
	setString(&cfg.UserAgent, fc.Source.UserAgent)
	if fc.Source.Headless != nil {
		cfg.Headless = *fc.Source.Headless
	}

	setDuration(&cfg.ResultsTimeout, fc.Timing.ResultsTimeout)
	setDuration(&cfg.DetailTimeout, fc.Timing.DetailTimeout)
	setDuration(&cfg.BatchTimeout, fc.Timing.BatchTimeout)
	setDuration(&cfg.SettleDelay, fc.Timing.SettleDelay)
	setDuration(&cfg.ScrollPause, fc.Timing.ScrollPause)
	setInt(&cfg.FeedScrollRounds, fc.Timing.FeedScrollRounds)
	setInt(&cfg.PanelScrollSteps, fc.Timing.PanelScrollSteps)
	setDuration(&cfg.ListingInterval, fc.Timing.ListingInterval)

	if len(fc.Output.Sinks) > 0 {
		cfg.Sinks = append([]string(nil), fc.Output.Sinks...)
	}
	setString(&cfg.CSVFile, fc.Output.CSVFile)
	setString(&cfg.JSONFile, fc.Output.JSONFile)
	setString(&cfg.SQLiteFile, fc.Output.SQLiteFile)
	setString(&cfg.FirestoreProject, fc.Output.FirestoreProject)
	setString(&cfg.FirestoreCollection, fc.Output.FirestoreCollection)
	setString(&cfg.CredentialsFile, fc.Output.CredentialsFile)

	setString(&cfg.MetricsAddr, fc.MetricsAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

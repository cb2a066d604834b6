package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "LEADSCOUT_"

// LoadDotEnv loads variables from the given .env files. Missing files are
// ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of LEADSCOUT_<key>.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses LEADSCOUT_<key> as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return value, true, nil
}

// EnvBool parses LEADSCOUT_<key> as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return value, true, nil
}

// EnvDuration parses LEADSCOUT_<key> as a Go duration ("8s", "1m30s").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return value, true, nil
}

// ApplyEnv overlays LEADSCOUT_* variables onto cfg.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"NICHE":                &cfg.Niche,
		"REGION":               &cfg.Region,
		"STATE":                &cfg.State,
		"SOURCE":               &cfg.Source,
		"SEARCH_BASE_URL":      &cfg.SearchBaseURL,
		"SNAPSHOT_URL":         &cfg.SnapshotURL,
		"CSV_FILE":             &cfg.CSVFile,
		"JSON_FILE":            &cfg.JSONFile,
		"SQLITE_FILE":          &cfg.SQLiteFile,
		"FIRESTORE_PROJECT":    &cfg.FirestoreProject,
		"FIRESTORE_COLLECTION": &cfg.FirestoreCollection,
		"CREDENTIALS_FILE":     &cfg.CredentialsFile,
		"METRICS_ADDR":         &cfg.MetricsAddr,
	}
	for key, dst := range strs {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	if value, ok := EnvString("SINKS"); ok {
		cfg.Sinks = ParseSinks(value)
	}

	if value, ok, err := EnvInt("MAX_RECORDS"); err != nil {
		return err
	} else if ok {
		cfg.MaxRecords = value
	}

	if value, ok, err := EnvBool("HEADLESS"); err != nil {
		return err
	} else if ok {
		cfg.Headless = value
	}

	durations := map[string]*time.Duration{
		"RESULTS_TIMEOUT":  &cfg.ResultsTimeout,
		"DETAIL_TIMEOUT":   &cfg.DetailTimeout,
		"BATCH_TIMEOUT":    &cfg.BatchTimeout,
		"LISTING_INTERVAL": &cfg.ListingInterval,
	}
	for key, dst := range durations {
		value, ok, err := EnvDuration(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	return nil
}

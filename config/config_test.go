package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty niche",
			mutate: func(cfg *Config) {
				cfg.Niche = "  "
			},
			wantErr: "niche",
		},
		{
			name: "empty region",
			mutate: func(cfg *Config) {
				cfg.Region = ""
			},
			wantErr: "region",
		},
		{
			name: "zero max records",
			mutate: func(cfg *Config) {
				cfg.MaxRecords = 0
			},
			wantErr: "max records",
		},
		{
			name: "unknown source",
			mutate: func(cfg *Config) {
				cfg.Source = "playwright"
			},
			wantErr: "source",
		},
		{
			name: "invalid search url",
			mutate: func(cfg *Config) {
				cfg.SearchBaseURL = "http://"
			},
			wantErr: "search base URL",
		},
		{
			name: "snapshot without url",
			mutate: func(cfg *Config) {
				cfg.Source = SourceSnapshot
			},
			wantErr: "snapshot URL",
		},
		{
			name: "negative detail timeout",
			mutate: func(cfg *Config) {
				cfg.DetailTimeout = -1 * time.Second
			},
			wantErr: "detail timeout",
		},
		{
			name: "negative batch timeout",
			mutate: func(cfg *Config) {
				cfg.BatchTimeout = -time.Minute
			},
			wantErr: "batch timeout",
		},
		{
			name: "no sinks",
			mutate: func(cfg *Config) {
				cfg.Sinks = nil
			},
			wantErr: "sink",
		},
		{
			name: "unknown sink",
			mutate: func(cfg *Config) {
				cfg.Sinks = []string{"csv", "excel"}
			},
			wantErr: "excel",
		},
		{
			name: "firestore without project",
			mutate: func(cfg *Config) {
				cfg.Sinks = []string{SinkFirestore}
			},
			wantErr: "firestore project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestParseSinks(t *testing.T) {
	got := ParseSinks(" CSV, json,,csv ,sqlite")
	want := []string{"csv", "json", "sqlite"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseSinks = %v, want %v", got, want)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LEADSCOUT_NICHE", "Academias")
	t.Setenv("LEADSCOUT_MAX_RECORDS", "7")
	t.Setenv("LEADSCOUT_HEADLESS", "false")
	t.Setenv("LEADSCOUT_DETAIL_TIMEOUT", "3s")
	t.Setenv("LEADSCOUT_SINKS", "json,sqlite")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Niche != "Academias" || cfg.MaxRecords != 7 || cfg.Headless {
		t.Fatalf("unexpected config: niche=%q max=%d headless=%v", cfg.Niche, cfg.MaxRecords, cfg.Headless)
	}
	if cfg.DetailTimeout != 3*time.Second {
		t.Fatalf("detail timeout = %v", cfg.DetailTimeout)
	}
	if !cfg.HasSink(SinkSQLite) || cfg.HasSink(SinkCSV) {
		t.Fatalf("sinks = %v", cfg.Sinks)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("LEADSCOUT_MAX_RECORDS", "twenty")
	if err := ApplyEnv(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "LEADSCOUT_MAX_RECORDS") {
		t.Fatalf("expected MAX_RECORDS parse error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEADSCOUT_TEST_REGION=Paragominas\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("LEADSCOUT_TEST_REGION") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got, ok := EnvString("TEST_REGION"); !ok || got != "Paragominas" {
		t.Fatalf("TEST_REGION = %q, %v", got, ok)
	}
}

func TestLoadFileApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	body := `
query:
  niche: Pet Shops
  region: Paragominas
  maxRecords: 5
source:
  kind: snapshot
  snapshotURL: http://archive.test/results.html
  headless: false
timing:
  detailTimeout: 4s
output:
  sinks: [csv, sqlite]
  sqlite: out/leads.db
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	cfg := DefaultConfig()
	fc.Apply(cfg)

	if cfg.Niche != "Pet Shops" || cfg.Region != "Paragominas" || cfg.MaxRecords != 5 {
		t.Fatalf("query not applied: %+v", cfg)
	}
	if cfg.State != "PA" {
		t.Fatalf("state should keep its default, got %q", cfg.State)
	}
	if cfg.Source != SourceSnapshot || cfg.Headless {
		t.Fatalf("source not applied: %q headless=%v", cfg.Source, cfg.Headless)
	}
	if cfg.DetailTimeout != 4*time.Second {
		t.Fatalf("detail timeout = %v", cfg.DetailTimeout)
	}
	if cfg.SQLiteFile != "out/leads.db" || !cfg.HasSink(SinkSQLite) {
		t.Fatalf("output not applied: %+v", cfg.Sinks)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("applied config should validate: %v", err)
	}
}

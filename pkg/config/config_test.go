package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BGG.BatchSize != 100 {
		t.Errorf("Expected default batch size to be 100, got %d", cfg.BGG.BatchSize)
	}
	if cfg.BGG.RunLimit != 10000 {
		t.Errorf("Expected default run limit to be 10000, got %d", cfg.BGG.RunLimit)
	}
	if cfg.Wikidata.PageSize != 10000 {
		t.Errorf("Expected default page size to be 10000, got %d", cfg.Wikidata.PageSize)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Expected default max attempts to be 5, got %d", cfg.Retry.MaxAttempts)
	}
	assert.Equal(t, 600*time.Millisecond, cfg.BGG.Delay)
	assert.Equal(t, 3*time.Second, cfg.Retry.ProcessingPause)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BGG_TOKEN", "env-token")
	t.Setenv("HARVESTER_BGG_RUN_LIMIT", "300")
	t.Setenv("HARVESTER_BGG_DELAY", "250ms")
	t.Setenv("HARVESTER_WIKIDATA_PAGES_PER_RUN", "3")
	t.Setenv("HARVESTER_MAX_ATTEMPTS", "7")
	t.Setenv("HARVESTER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-token", cfg.BGG.Token)
	assert.Equal(t, int64(300), cfg.BGG.RunLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.BGG.Delay)
	assert.Equal(t, 3, cfg.Wikidata.PagesPerRun)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvPrefixedTokenWins(t *testing.T) {
	t.Setenv("BGG_TOKEN", "plain")
	t.Setenv("HARVESTER_BGG_TOKEN", "prefixed")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "prefixed", cfg.BGG.Token)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("HARVESTER_BGG_BATCH_SIZE", "lots")
	t.Setenv("HARVESTER_BGG_DELAY", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HARVESTER_BGG_BATCH_SIZE")
	assert.Contains(t, err.Error(), "HARVESTER_BGG_DELAY")
	assert.Equal(t, 100, cfg.BGG.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero batch size", mutate: func(c *Config) { c.BGG.BatchSize = 0 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Wikidata.Delay = -time.Second }, wantErr: true},
		{name: "no user agent", mutate: func(c *Config) { c.Wikidata.UserAgent = "" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: true},
		{name: "unknown sink", mutate: func(c *Config) { c.Output.Sink = "parquet" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Output.Sink = SinkPostgres }, wantErr: true},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Output.Sink = SinkPostgres
				c.Postgres.DSN = "postgres://localhost/catalog"
			},
		},
		{name: "ceiling without burst", mutate: func(c *Config) {
			c.RateLimit.RequestsPerMinute = 60
			c.RateLimit.BurstSize = 0
		}, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BGG.BatchSize = 0
	cfg.Wikidata.PageSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bgg.batch_size")
	assert.Contains(t, err.Error(), "wikidata.page_size")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"run-limit":    int64(300),
		"batch-size":   50,
		"max-id":       int64(1000),
		"pages":        2,
		"delay":        time.Second,
		"max-attempts": 3,
		"output":       "/tmp/out.csv",
		"log-level":    "error",
		// zero values are ignored
		"page-size": 0,
	})

	assert.Equal(t, int64(300), cfg.BGG.RunLimit)
	assert.Equal(t, 50, cfg.BGG.BatchSize)
	assert.Equal(t, int64(1000), cfg.BGG.MaxID)
	assert.Equal(t, 2, cfg.Wikidata.PagesPerRun)
	assert.Equal(t, time.Second, cfg.BGG.Delay)
	assert.Equal(t, time.Second, cfg.Wikidata.Delay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "/tmp/out.csv", cfg.Output.CSVFile)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 10000, cfg.Wikidata.PageSize)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.BGG.MaxID = 500000
	cfg.Wikidata.Delay = 2 * time.Second
	cfg.Metrics.Textfile = "/var/lib/node_exporter/harvester.prom"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, int64(500000), loaded.BGG.MaxID)
	assert.Equal(t, 2*time.Second, loaded.Wikidata.Delay)
	assert.Equal(t, "/var/lib/node_exporter/harvester.prom", loaded.Metrics.Textfile)
}

func TestLoadFromFileDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
bgg:
  delay: 1500ms
  run_limit: 2000
retry:
  max_attempts: 2
  processing_pause: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, 1500*time.Millisecond, cfg.BGG.Delay)
	assert.Equal(t, int64(2000), cfg.BGG.RunLimit)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.ProcessingPause)
	// untouched sections keep their defaults
	assert.Equal(t, 100, cfg.BGG.BatchSize)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bgg:\n  run_limit: 2000\n  batch_size: 20\n"), 0600))

	t.Setenv("HARVESTER_BGG_RUN_LIMIT", "3000")

	cfg, err := Load(path, map[string]interface{}{"batch-size": 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), cfg.BGG.RunLimit)
	assert.Equal(t, 10, cfg.BGG.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

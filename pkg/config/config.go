package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the harvester.
// It is built once by Load and passed by value into each component.
type Config struct {
	BGG       BGGConfig       `yaml:"bgg" json:"bgg"`
	Wikidata  WikidataConfig  `yaml:"wikidata" json:"wikidata"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Postgres  PostgresConfig  `yaml:"postgres" json:"postgres"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// BGGConfig configures the BoardGameGeek ID sweep
type BGGConfig struct {
	APIURL    string        `yaml:"api_url" json:"api_url"`
	Token     string        `yaml:"token,omitempty" json:"-"`
	Types     []string      `yaml:"types" json:"types"`
	BatchSize int           `yaml:"batch_size" json:"batch_size"`
	MaxID     int64         `yaml:"max_id" json:"max_id"`
	RunLimit  int64         `yaml:"run_limit" json:"run_limit"`
	Delay     time.Duration `yaml:"delay" json:"delay"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	StateFile string        `yaml:"state_file" json:"state_file"`
}

// WikidataConfig configures the Wikidata paginated sweep
type WikidataConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	ClassID     string        `yaml:"class_id" json:"class_id"`
	Language    string        `yaml:"language" json:"language"`
	PageSize    int           `yaml:"page_size" json:"page_size"`
	PagesPerRun int           `yaml:"pages_per_run" json:"pages_per_run"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	StateFile   string        `yaml:"state_file" json:"state_file"`
}

// RetryConfig holds the per-unit retry policy shared by both sources
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay" json:"max_delay"`
	ProcessingPause time.Duration `yaml:"processing_pause" json:"processing_pause"`
}

// RateLimitConfig holds an optional request ceiling applied to every HTTP attempt.
// RequestsPerMinute of 0 disables it; the per-source delay still applies.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// OutputConfig selects where normalized records go
type OutputConfig struct {
	Sink    string        `yaml:"sink" json:"sink"`
	CSVFile string        `yaml:"csv_file" json:"csv_file"`
	LockTTL time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// PostgresConfig configures the optional Postgres sink
type PostgresConfig struct {
	DSN   string `yaml:"dsn,omitempty" json:"-"`
	Table string `yaml:"table" json:"table"`
}

// MetricsConfig configures the node_exporter textfile written after each run
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

const (
	SinkCSV      = "csv"
	SinkPostgres = "postgres"
)

// DefaultConfig returns a Config matching the cadence BGG and Wikidata tolerate
func DefaultConfig() *Config {
	return &Config{
		BGG: BGGConfig{
			APIURL:    "https://boardgamegeek.com/xmlapi2/thing",
			Types:     []string{"boardgame", "boardgameexpansion"},
			BatchSize: 100,
			MaxID:     420000,
			RunLimit:  10000,
			Delay:     600 * time.Millisecond,
			Timeout:   30 * time.Second,
			StateFile: "scraper_state.json",
		},
		Wikidata: WikidataConfig{
			Endpoint:    "https://query.wikidata.org/sparql",
			UserAgent:   "BoardGameDatabase/1.0 (personal collection project)",
			ClassID:     "Q131436",
			Language:    "en",
			PageSize:    10000,
			PagesPerRun: 1,
			Delay:       600 * time.Millisecond,
			Timeout:     90 * time.Second,
			StateFile:   "wikidata_state.json",
		},
		Retry: RetryConfig{
			MaxAttempts:     5,
			BaseDelay:       time.Second,
			MaxDelay:        time.Minute,
			ProcessingPause: 3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
			BurstSize:         1,
		},
		Output: OutputConfig{
			Sink:    SinkCSV,
			CSVFile: "master_list.csv",
			LockTTL: 6 * time.Hour,
		},
		Postgres: PostgresConfig{
			Table: "harvested_records",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv applies HARVESTER_* environment overrides.
// BGG_TOKEN is honoured as well since that is the name BGG documents.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if token := os.Getenv("BGG_TOKEN"); token != "" {
		c.BGG.Token = token
	}
	if token := os.Getenv("HARVESTER_BGG_TOKEN"); token != "" {
		c.BGG.Token = token
	}
	if v := os.Getenv("HARVESTER_BGG_API_URL"); v != "" {
		c.BGG.APIURL = v
	}
	if v := os.Getenv("HARVESTER_WIKIDATA_ENDPOINT"); v != "" {
		c.Wikidata.Endpoint = v
	}
	if v := os.Getenv("HARVESTER_WIKIDATA_USER_AGENT"); v != "" {
		c.Wikidata.UserAgent = v
	}
	if v := os.Getenv("HARVESTER_OUTPUT_SINK"); v != "" {
		c.Output.Sink = v
	}
	if v := os.Getenv("HARVESTER_OUTPUT_CSV"); v != "" {
		c.Output.CSVFile = v
	}
	if v := os.Getenv("HARVESTER_POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("HARVESTER_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
	if v := os.Getenv("HARVESTER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HARVESTER_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	envInt(&errs, "HARVESTER_BGG_BATCH_SIZE", &c.BGG.BatchSize)
	envInt64(&errs, "HARVESTER_BGG_MAX_ID", &c.BGG.MaxID)
	envInt64(&errs, "HARVESTER_BGG_RUN_LIMIT", &c.BGG.RunLimit)
	envDuration(&errs, "HARVESTER_BGG_DELAY", &c.BGG.Delay)
	envInt(&errs, "HARVESTER_WIKIDATA_PAGE_SIZE", &c.Wikidata.PageSize)
	envInt(&errs, "HARVESTER_WIKIDATA_PAGES_PER_RUN", &c.Wikidata.PagesPerRun)
	envDuration(&errs, "HARVESTER_WIKIDATA_DELAY", &c.Wikidata.Delay)
	envInt(&errs, "HARVESTER_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	envInt(&errs, "HARVESTER_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	return errors.Join(errs...)
}

func envInt(errs *[]error, key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func envInt64(errs *[]error, key string, dst *int64) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func envDuration(errs *[]error, key string, dst *time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

// LoadFromFile loads configuration from a YAML file.
// An empty path searches the default locations; finding nothing is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		"harvester.yaml",
		".harvester.yaml",
		".harvester.yml",
		filepath.Join(home, ".config", "harvester", "config.yaml"),
		filepath.Join(home, ".config", "harvester", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "harvester.yaml"
	}
	return filepath.Join(home, ".config", "harvester", "config.yaml")
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []error

	if c.BGG.APIURL == "" {
		errs = append(errs, errors.New("bgg.api_url is required"))
	}
	if c.BGG.BatchSize <= 0 {
		errs = append(errs, errors.New("bgg.batch_size must be positive"))
	}
	if c.BGG.MaxID <= 0 {
		errs = append(errs, errors.New("bgg.max_id must be positive"))
	}
	if c.BGG.RunLimit <= 0 {
		errs = append(errs, errors.New("bgg.run_limit must be positive"))
	}
	if c.BGG.Delay < 0 {
		errs = append(errs, errors.New("bgg.delay cannot be negative"))
	}
	if c.BGG.Timeout <= 0 {
		errs = append(errs, errors.New("bgg.timeout must be positive"))
	}
	if len(c.BGG.Types) == 0 {
		errs = append(errs, errors.New("bgg.types must name at least one thing type"))
	}
	if c.BGG.StateFile == "" {
		errs = append(errs, errors.New("bgg.state_file is required"))
	}

	if c.Wikidata.Endpoint == "" {
		errs = append(errs, errors.New("wikidata.endpoint is required"))
	}
	if c.Wikidata.UserAgent == "" {
		errs = append(errs, errors.New("wikidata.user_agent is required, Wikidata rejects anonymous bots"))
	}
	if c.Wikidata.PageSize <= 0 {
		errs = append(errs, errors.New("wikidata.page_size must be positive"))
	}
	if c.Wikidata.PagesPerRun <= 0 {
		errs = append(errs, errors.New("wikidata.pages_per_run must be positive"))
	}
	if c.Wikidata.Delay < 0 {
		errs = append(errs, errors.New("wikidata.delay cannot be negative"))
	}
	if c.Wikidata.Timeout <= 0 {
		errs = append(errs, errors.New("wikidata.timeout must be positive"))
	}
	if c.Wikidata.StateFile == "" {
		errs = append(errs, errors.New("wikidata.state_file is required"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.ProcessingPause < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry.max_delay must not be below retry.base_delay"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("rate_limit.burst_size must be positive when a ceiling is set"))
	}

	switch strings.ToLower(c.Output.Sink) {
	case SinkCSV:
		if c.Output.CSVFile == "" {
			errs = append(errs, errors.New("output.csv_file is required for the csv sink"))
		}
	case SinkPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres sink"))
		}
		if c.Postgres.Table == "" {
			errs = append(errs, errors.New("postgres.table is required for the postgres sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown output.sink %q", c.Output.Sink))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML. The file is 0600 since it may
// carry the BGG token or the Postgres DSN.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies values the user passed on the command line.
// Keys match the cobra flag names; zero values mean "not set".
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["run-limit"].(int64); ok && v > 0 {
		c.BGG.RunLimit = v
	}
	if v, ok := flags["batch-size"].(int); ok && v > 0 {
		c.BGG.BatchSize = v
	}
	if v, ok := flags["max-id"].(int64); ok && v > 0 {
		c.BGG.MaxID = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Wikidata.PageSize = v
	}
	if v, ok := flags["pages"].(int); ok && v > 0 {
		c.Wikidata.PagesPerRun = v
	}
	if v, ok := flags["delay"].(time.Duration); ok && v > 0 {
		c.BGG.Delay = v
		c.Wikidata.Delay = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.CSVFile = v
	}
	if v, ok := flags["sink"].(string); ok && v != "" {
		c.Output.Sink = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["metrics-textfile"].(string); ok && v != "" {
		c.Metrics.Textfile = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment (including .env) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".harvester.env"))
	}

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

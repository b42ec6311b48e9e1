package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// Default archive host and URL templates. Fingrid switched from .zip to .7z
// archives, so both conventions are tried in order.
const (
	DefaultBaseURL      = "https://data.fingrid.fi/files/339"
	DefaultURLTemplates = "{base}/{year}/{year}-{month}.7z,{base}/{year}/{year}-{month}.zip"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	RawDir       string
	ExtractedDir string
	WeeklyDir    string
	SummaryPath  string
	ChartPath    string
	WorkbookPath string

	FetchFrom         domain.Month
	FetchTo           domain.Month
	FetchBaseURL      string
	FetchURLTemplates []string
	FetchTimeout      time.Duration

	// Timezone handling for the weekly aggregation.
	SourceTZ    *time.Location
	TargetTZ    *time.Location
	Ambiguous   domain.AmbiguousPolicy
	Nonexistent domain.NonexistentPolicy

	// Band is not read from the environment.
	Band domain.Band

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	MetricsTextfile string

	KafkaBrokers      []string
	KafkaSummaryTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is read first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "10s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	fetchTo := domain.MonthOf(domain.Now())
	if v := os.Getenv("FETCH_TO"); v != "" {
		if fetchTo, err = domain.ParseMonth(v); err != nil {
			return nil, fmt.Errorf("invalid FETCH_TO: %w", err)
		}
	}
	fetchFrom := fetchTo
	if v := os.Getenv("FETCH_FROM"); v != "" {
		if fetchFrom, err = domain.ParseMonth(v); err != nil {
			return nil, fmt.Errorf("invalid FETCH_FROM: %w", err)
		}
	}
	if fetchFrom.After(fetchTo) {
		return nil, errors.New("FETCH_FROM must not be after FETCH_TO")
	}

	sourceTZ, err := time.LoadLocation(sharedcfg.EnvOrDefault("SOURCE_TZ", "Europe/Helsinki"))
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_TZ: %w", err)
	}
	targetTZ, err := time.LoadLocation(sharedcfg.EnvOrDefault("TARGET_TZ", "Europe/Oslo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_TZ: %w", err)
	}
	ambiguous, err := domain.ParseAmbiguousPolicy(sharedcfg.EnvOrDefault("AMBIGUOUS_TIME", "standard"))
	if err != nil {
		return nil, fmt.Errorf("invalid AMBIGUOUS_TIME: %w", err)
	}
	nonexistent, err := domain.ParseNonexistentPolicy(sharedcfg.EnvOrDefault("NONEXISTENT_TIME", "shift_forward"))
	if err != nil {
		return nil, fmt.Errorf("invalid NONEXISTENT_TIME: %w", err)
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")

	cfg := &Config{
		RawDir:       sharedcfg.EnvOrDefault("RAW_DIR", filepath.Join(dataDir, "raw")),
		ExtractedDir: sharedcfg.EnvOrDefault("EXTRACTED_DIR", filepath.Join(dataDir, "extracted_csv")),
		WeeklyDir:    sharedcfg.EnvOrDefault("WEEKLY_DIR", filepath.Join(dataDir, "weekly_csv")),
		SummaryPath:  sharedcfg.EnvOrDefault("SUMMARY_PATH", filepath.Join(dataDir, "minutes_outside_nominal_per_week.csv")),
		ChartPath:    sharedcfg.EnvOrDefault("CHART_PATH", filepath.Join(dataDir, "minutes_outside_nominal.html")),
		WorkbookPath: sharedcfg.EnvOrDefault("WORKBOOK_PATH", filepath.Join(dataDir, "minutes_outside_nominal.xlsx")),

		FetchFrom:         fetchFrom,
		FetchTo:           fetchTo,
		FetchBaseURL:      strings.TrimSuffix(sharedcfg.EnvOrDefault("FETCH_BASE_URL", DefaultBaseURL), "/"),
		FetchURLTemplates: splitList(sharedcfg.EnvOrDefault("FETCH_URL_TEMPLATES", DefaultURLTemplates)),
		FetchTimeout:      fetchTimeout,

		SourceTZ:    sourceTZ,
		TargetTZ:    targetTZ,
		Ambiguous:   ambiguous,
		Nonexistent: nonexistent,
		Band:        domain.NominalBand(),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaSummaryTopic: sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "grid-frequency-weekly"),
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	if len(cfg.FetchURLTemplates) == 0 {
		return nil, errors.New("FETCH_URL_TEMPLATES is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSummaryTopic == "" {
		return nil, errors.New("KAFKA_SUMMARY_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// Localizer builds the timezone policy used by the weekly aggregation.
func (c *Config) Localizer() domain.Localizer {
	return domain.Localizer{
		Source:      c.SourceTZ,
		Target:      c.TargetTZ,
		Ambiguous:   c.Ambiguous,
		Nonexistent: c.Nonexistent,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config loads the YAML configuration file driving the pipeline.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/threadstock/threadstock/internal/records"
)

// Config is the application configuration.
type Config struct {
	// Backend selects the tabular store: "sheets", "postgres", or "memory".
	Backend     string                      `yaml:"backend"`
	Google      GoogleConfig                `yaml:"google"`
	Postgres    PostgresConfig              `yaml:"postgres"`
	State       StateConfig                 `yaml:"state"`
	Sheets      SheetsConfig                `yaml:"sheets"`
	Labels      LabelsConfig                `yaml:"labels"`
	Commissions map[string]CommissionConfig `yaml:"commissions"`
	Ingest      IngestConfig                `yaml:"ingest"`
}

// GoogleConfig holds Gmail and Sheets access settings.
type GoogleConfig struct {
	// AuthDir holds the OAuth credentials and token for the Gmail account.
	AuthDir string `yaml:"auth_dir"`
	// CredentialsFile is the service-account key used for Sheets.
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
}

// PostgresConfig holds settings for the Postgres tabular backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// StateConfig locates the local SQLite state database.
type StateConfig struct {
	Path string `yaml:"path"`
}

// SheetsConfig names the tabs records are written to.
type SheetsConfig struct {
	Stock     string `yaml:"stock"`
	Sales     string `yaml:"sales"`
	Purchases string `yaml:"purchases"`
	Logs      string `yaml:"logs"`
}

// LabelsConfig maps ingestion categories to mailbox labels.
type LabelsConfig struct {
	Stock      string            `yaml:"stock"`
	Sales      map[string]string `yaml:"sales"`
	Purchases  string            `yaml:"purchases"`
	Engagement string            `yaml:"engagement"`
	Done       string            `yaml:"done"`
	Error      string            `yaml:"error"`
}

// CommissionConfig is the fee schedule of one marketplace.
type CommissionConfig struct {
	Percent float64 `yaml:"percent"`
	FlatFee float64 `yaml:"flat_fee"`
}

// IngestConfig tunes the pipeline.
type IngestConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	RPS        int           `yaml:"rps"`
	Retries    int           `yaml:"retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	Budget     time.Duration `yaml:"budget"`
	Every      time.Duration `yaml:"every"`
	CellWrites bool          `yaml:"cell_writes"`
}

// Load reads, expands, parses, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns, leaving unset variables verbatim.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

func (c *Config) setDefaults() {
	if c.Backend == "" {
		c.Backend = "sheets"
	}
	if c.State.Path == "" {
		c.State.Path = "./threadstock.db"
	}
	if c.Sheets.Stock == "" {
		c.Sheets.Stock = "Stock"
	}
	if c.Sheets.Sales == "" {
		c.Sheets.Sales = "Sales"
	}
	if c.Sheets.Purchases == "" {
		c.Sheets.Purchases = "Purchases"
	}
	if c.Sheets.Logs == "" {
		c.Sheets.Logs = "Logs"
	}
	if c.Labels.Stock == "" {
		c.Labels.Stock = "crm/stock"
	}
	if c.Labels.Purchases == "" {
		c.Labels.Purchases = "crm/purchases"
	}
	if c.Labels.Engagement == "" {
		c.Labels.Engagement = "crm/engagement"
	}
	if c.Labels.Done == "" {
		c.Labels.Done = "crm/done"
	}
	if c.Labels.Error == "" {
		c.Labels.Error = "crm/error"
	}
	if c.Labels.Sales == nil {
		c.Labels.Sales = make(map[string]string)
	}
	for _, p := range records.Platforms() {
		name := string(p)
		if _, ok := c.Labels.Sales[name]; !ok {
			c.Labels.Sales[name] = "crm/sales/" + strings.ToLower(name)
		}
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = 25
	}
	if c.Ingest.RPS == 0 {
		c.Ingest.RPS = 5
	}
	if c.Ingest.Retries == 0 {
		c.Ingest.Retries = 3
	}
	if c.Ingest.BaseDelay == 0 {
		c.Ingest.BaseDelay = 500 * time.Millisecond
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case "sheets":
		if c.Google.SpreadsheetID == "" {
			return fmt.Errorf("config: sheets backend requires google.spreadsheet_id")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres backend requires postgres.dsn")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	for name := range c.Commissions {
		if _, ok := records.ParsePlatform(name); !ok {
			return fmt.Errorf("config: commission for unknown platform %q", name)
		}
	}
	return nil
}

// LabelFor resolves the mailbox label feeding a category. Sales categories
// are addressed as "sales/<Platform>". Unknown categories map to the empty
// string; operators rename labels here, never in code.
func (c *Config) LabelFor(category string) string {
	switch category {
	case "stock":
		return c.Labels.Stock
	case "purchases":
		return c.Labels.Purchases
	case "engagement":
		return c.Labels.Engagement
	}
	if platform, ok := strings.CutPrefix(category, "sales/"); ok {
		return c.Labels.Sales[platform]
	}
	return ""
}

// CommissionFor returns the fee schedule of a platform; platforms without one
// configured sell fee-free.
func (c *Config) CommissionFor(p records.Platform) records.Commission {
	cc, ok := c.Commissions[string(p)]
	if !ok {
		return records.Commission{}
	}
	return records.Commission{Percent: cc.Percent, FlatFee: cc.FlatFee}
}

var _ records.CommissionSource = (*Config)(nil)

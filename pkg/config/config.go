package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel         = "info"
	DefaultTimeoutSec       = 10
	DefaultFetchConcurrency = 1
	DefaultMaxAttempts      = 3
	DefaultBaseBackoff      = 100 * time.Millisecond
)

type DBConfig struct {
	Type         string `yaml:"type" json:"type"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	DatabaseName string `yaml:"database_name" json:"database_name"`
	DSN          string `yaml:"dsn" json:"dsn"`         // optional explicit DSN
	Timeout      int    `yaml:"timeout" json:"timeout"` // connect timeout seconds
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff" json:"base_backoff"`
}

type CherryPickConfig struct {
	FetchConcurrency int         `yaml:"fetch_concurrency" json:"fetch_concurrency"`
	Retry            RetryConfig `yaml:"retry" json:"retry"`
	// DisplayColumns maps a table (name or schema.table) to the columns shown
	// in graph output.
	DisplayColumns map[string][]string `yaml:"display_columns" json:"display_columns"`
}

type AppConfig struct {
	Log        LogConfig           `yaml:"log" json:"log"`
	Databases  map[string]DBConfig `yaml:"databases" json:"databases"`
	CherryPick CherryPickConfig    `yaml:"cherry_pick" json:"cherry_pick"`
}

// LoadFile loads YAML config from path, fills in defaults and validates it.
func LoadFile(path string) (AppConfig, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(f)
}

// Parse decodes a YAML document, fills in defaults and validates it.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *AppConfig) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.CherryPick.FetchConcurrency == 0 {
		c.CherryPick.FetchConcurrency = DefaultFetchConcurrency
	}
	if c.CherryPick.Retry.MaxAttempts == 0 {
		c.CherryPick.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.CherryPick.Retry.BaseBackoff == 0 {
		c.CherryPick.Retry.BaseBackoff = DefaultBaseBackoff
	}
	for name, db := range c.Databases {
		if db.Timeout == 0 {
			db.Timeout = DefaultTimeoutSec
			c.Databases[name] = db
		}
	}
}

// Validate reports every problem found, joined.
func (c AppConfig) Validate() error {
	var errs []error
	for _, name := range c.DatabaseNames() {
		db := c.Databases[name]
		if strings.TrimSpace(db.Type) == "" {
			errs = append(errs, fmt.Errorf("databases.%s: type is required", name))
		}
		if db.Timeout < 0 {
			errs = append(errs, fmt.Errorf("databases.%s: timeout must not be negative", name))
		}
	}
	if c.CherryPick.FetchConcurrency < 1 {
		errs = append(errs, errors.New("cherry_pick.fetch_concurrency must be at least 1"))
	}
	if c.CherryPick.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("cherry_pick.retry.max_attempts must be at least 1"))
	}
	if c.CherryPick.Retry.BaseBackoff < 0 {
		errs = append(errs, errors.New("cherry_pick.retry.base_backoff must not be negative"))
	}
	for table, cols := range c.CherryPick.DisplayColumns {
		if len(cols) == 0 {
			errs = append(errs, fmt.Errorf("cherry_pick.display_columns.%s: no columns", table))
		}
	}
	return errors.Join(errs...)
}

// DatabaseNames returns the configured connection names, sorted.
func (c AppConfig) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for n := range c.Databases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Database returns the connection called name.
func (c AppConfig) Database(name string) (DBConfig, error) {
	db, ok := c.Databases[name]
	if !ok {
		return DBConfig{}, fmt.Errorf("database %q is not configured (available: %v)", name, c.DatabaseNames())
	}
	return db, nil
}

// ParseDisplayColumns parses "users:id|email,orders:id" into a table to
// columns mapping.
func ParseDisplayColumns(s string) (map[string][]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := map[string][]string{}
	for _, entry := range strings.Split(s, ",") {
		table, cols, ok := strings.Cut(strings.TrimSpace(entry), ":")
		table = strings.TrimSpace(table)
		if !ok || table == "" {
			return nil, fmt.Errorf("display columns %q: want table:col1|col2", entry)
		}
		var names []string
		for _, c := range strings.Split(cols, "|") {
			if c = strings.TrimSpace(c); c != "" {
				names = append(names, c)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("display columns %q: no columns for %s", entry, table)
		}
		out[table] = names
	}
	return out, nil
}

// NormalizeDriver maps common aliases to canonical keys (keeps backwards compat).
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "pgx":
		return "pgx"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mssql", "sqlserver":
		return "sqlserver"
	case "godror", "oracle":
		return "godror"
	default:
		return strings.ToLower(d)
	}
}

// BuildDriverAndDSN produces a driver name and DSN string for supported DB types.
func BuildDriverAndDSN(db DBConfig) (driver string, dsn string, err error) {
	// If explicit DSN provided, user must also set Type to choose driver or we guess
	t := NormalizeDriver(db.Type)

	if db.DSN != "" {
		return t, db.DSN, nil
	}

	switch t {
	case "postgres", "pgx":
		driver = t
		// simple URL form
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "mysql":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "sqlite":
		driver = "sqlite"
		if db.DatabaseName == "" {
			return "", "", fmt.Errorf("sqlite needs a file path in database_name")
		}
		dsn = fmt.Sprintf("file:%s?mode=ro", db.DatabaseName)
	case "sqlserver":
		driver = "sqlserver"
		dsn = fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "godror":
		driver = "godror"
		// simple EZCONNECT style; may need adjustments per environment
		dsn = fmt.Sprintf("%s/%s@%s:%d/%s",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return
}

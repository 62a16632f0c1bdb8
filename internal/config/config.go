package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sitesafe settings. Values are read from an optional YAML
// file and then overridden by SITESAFE_* environment variables.
type Config struct {
	Addr              string `yaml:"addr"`
	DBPath            string `yaml:"db_path"`
	AdminUsername     string `yaml:"admin_username"`
	AdminPasswordHash string `yaml:"admin_password_hash"`

	Storage   StorageConfig   `yaml:"storage"`
	Documents DocumentsConfig `yaml:"documents"`
	Leave     LeaveConfig     `yaml:"leave"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver         string `yaml:"driver"`
	LocalDir       string `yaml:"local_dir"`
	PublicBaseURL  string `yaml:"public_base_url"`
	BucketPrefix   string `yaml:"bucket_prefix"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	SignedURLTTL   string `yaml:"signed_url_ttl"`
	// SigningSecret keys the local driver's signed links. When empty a
	// random secret is used and links stop working after a restart.
	SigningSecret string `yaml:"signing_secret"`
}

type DocumentsConfig struct {
	FetchTimeout string `yaml:"fetch_timeout"`
	// MaxParallelFetches bounds the store fan-out done before generation.
	MaxParallelFetches int  `yaml:"max_parallel_fetches"`
	Compress           bool `yaml:"compress"`
	// AllowedHosts limits remote image fetches. Loopback and private
	// addresses are refused unless AllowPrivateNetworks is set.
	AllowedHosts         []string `yaml:"allowed_hosts"`
	AllowPrivateNetworks bool     `yaml:"allow_private_networks"`
}

type LeaveConfig struct {
	// YearStartMonth is the first month of the leave year (1 = January).
	YearStartMonth   int      `yaml:"year_start_month"`
	DefaultAllowance float64  `yaml:"default_allowance"`
	BankHolidays     []string `yaml:"bank_holidays"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		DBPath:        "data/sitesafe.db",
		AdminUsername: "admin",
		Storage: StorageConfig{
			Driver:         "local",
			LocalDir:       "data/storage",
			PublicBaseURL:  "http://localhost:8080/api/files",
			Region:         "eu-west-2",
			MaxUploadBytes: 10 << 20,
			SignedURLTTL:   "1h",
		},
		Documents: DocumentsConfig{
			FetchTimeout:       "15s",
			MaxParallelFetches: 4,
			Compress:           true,
		},
		Leave: LeaveConfig{
			YearStartMonth:   1,
			DefaultAllowance: 28,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of Default and applies environment overrides. An
// empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "SITESAFE_ADDR")
	setString(&c.DBPath, "SITESAFE_DB_PATH")
	setString(&c.AdminUsername, "SITESAFE_ADMIN_USERNAME")
	setString(&c.AdminPasswordHash, "SITESAFE_ADMIN_PASSWORD_HASH")
	setString(&c.Storage.Driver, "SITESAFE_STORAGE_DRIVER")
	setString(&c.Storage.LocalDir, "SITESAFE_STORAGE_DIR")
	setString(&c.Storage.PublicBaseURL, "SITESAFE_PUBLIC_BASE_URL")
	setString(&c.Storage.BucketPrefix, "SITESAFE_S3_BUCKET_PREFIX")
	setString(&c.Storage.Region, "SITESAFE_S3_REGION")
	setString(&c.Storage.Endpoint, "SITESAFE_S3_ENDPOINT")
	if v, ok := lookup("SITESAFE_S3_FORCE_PATH_STYLE"); ok {
		c.Storage.ForcePathStyle = parseBool(v)
	}
	if v, ok := lookup("SITESAFE_MAX_UPLOAD_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Storage.MaxUploadBytes = n
		}
	}
	setString(&c.Storage.SignedURLTTL, "SITESAFE_SIGNED_URL_TTL")
	setString(&c.Storage.SigningSecret, "SITESAFE_SIGNING_SECRET")
	setString(&c.Documents.FetchTimeout, "SITESAFE_FETCH_TIMEOUT")
	if v, ok := lookup("SITESAFE_FETCH_ALLOWED_HOSTS"); ok {
		c.Documents.AllowedHosts = strings.Split(v, ",")
	}
	setString(&c.Logging.Level, "SITESAFE_LOG_LEVEL")
	if v, ok := lookup("SITESAFE_LOG_DEV"); ok {
		c.Logging.Development = parseBool(v)
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	switch c.Storage.Driver {
	case "local":
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir is required for the local driver")
		}
	case "s3":
		if strings.TrimSpace(c.Storage.Region) == "" {
			return errors.New("storage.region is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("storage.max_upload_bytes must be positive")
	}
	if _, err := time.ParseDuration(c.Storage.SignedURLTTL); err != nil {
		return fmt.Errorf("storage.signed_url_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Documents.FetchTimeout); err != nil {
		return fmt.Errorf("documents.fetch_timeout: %w", err)
	}
	if c.Leave.YearStartMonth < 1 || c.Leave.YearStartMonth > 12 {
		return errors.New("leave.year_start_month must be between 1 and 12")
	}
	for _, day := range c.Leave.BankHolidays {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return fmt.Errorf("leave.bank_holidays: %q must use YYYY-MM-DD", day)
		}
	}
	return nil
}

func (c Config) SignedURLTTL() time.Duration {
	d, _ := time.ParseDuration(c.Storage.SignedURLTTL)
	return d
}

func (c Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Documents.FetchTimeout)
	return d
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

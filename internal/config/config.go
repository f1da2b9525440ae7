// Package config loads the engine's configuration file: the approved CIDR
// whitelist, region and criterion selection, persistence and dispatch
// settings, and the exception register.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/alphagov/csw-engine/internal/exceptions"
)

const dateLayout = "2006-01-02"

// Config is the top-level application configuration, read from
// ~/.config/csw/config.yaml (or the path given with --config).
type Config struct {
	Audit    AuditConfig    `mapstructure:"audit"`
	Store    StoreConfig    `mapstructure:"store"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`

	Exceptions []ExceptionEntry `mapstructure:"exceptions"`
	Allowlist  []AllowlistEntry `mapstructure:"allowlist"`
}

// AuditConfig selects what an audit run covers.
type AuditConfig struct {
	// AllowedCIDRs is the organisation's approved ingress whitelist, applied
	// to every CIDR-based criterion.
	AllowedCIDRs []string `mapstructure:"allowed_cidrs"`

	// Regions restricts the audit to an explicit region list. Empty means
	// discover every active region.
	Regions []string `mapstructure:"regions"`

	// DisabledCriteria names criteria to skip.
	DisabledCriteria []string `mapstructure:"disabled_criteria"`

	// DefaultProfile is used when no --profile flag is provided.
	DefaultProfile string `mapstructure:"default_profile"`
}

// StoreConfig configures the encrypted local report store.
type StoreConfig struct {
	// Dir is the directory encrypted reports are written to.
	Dir string `mapstructure:"dir"`

	// KeyARN is the KMS key reports are sealed under when no per-account
	// key is configured.
	KeyARN string `mapstructure:"key_arn"`

	// AccountKeyARNs maps account IDs to dedicated KMS keys.
	AccountKeyARNs map[string]string `mapstructure:"account_key_arns"`
}

// KeyForAccount returns the KMS key ARN to seal the account's reports with.
func (s StoreConfig) KeyForAccount(accountID string) string {
	if arn, ok := s.AccountKeyARNs[accountID]; ok {
		return arn
	}
	return s.KeyARN
}

// DispatchConfig configures the queue completed audits are forwarded to.
type DispatchConfig struct {
	QueueURL string `mapstructure:"queue_url"`
}

// ExceptionEntry is one per-resource suppression as written in the config
// file. Dates use the YYYY-MM-DD layout.
type ExceptionEntry struct {
	Criterion    string `mapstructure:"criterion"`
	PersistentID string `mapstructure:"resource_persistent_id"`
	AccountID    string `mapstructure:"account_id"`
	Reason       string `mapstructure:"reason"`
	DateCreated  string `mapstructure:"date_created"`
	DateExpires  string `mapstructure:"date_expires"`
}

// AllowlistEntry is one approved-CIDR window as written in the config file.
type AllowlistEntry struct {
	AccountID   string `mapstructure:"account_id"`
	CIDR        string `mapstructure:"cidr"`
	Reason      string `mapstructure:"reason"`
	DateCreated string `mapstructure:"date_created"`
	DateExpires string `mapstructure:"date_expires"`
}

// Load reads the configuration from path, or from the default location when
// path is empty. A missing file yields the defaults, not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".config", "csw"))
	}
	v.SetEnvPrefix("CSW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audit.allowed_cidrs", []string{})
	v.SetDefault("audit.regions", []string{})
	v.SetDefault("audit.disabled_criteria", []string{})
	v.SetDefault("store.dir", defaultStoreDir())
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".csw/audits"
	}
	return filepath.Join(home, ".csw", "audits")
}

// Validate checks the parts of the configuration that cannot be checked
// lazily: date windows on exceptions and allow-list entries.
func (c *Config) Validate() error {
	for i, e := range c.Exceptions {
		if e.Criterion == "" || e.PersistentID == "" {
			return fmt.Errorf("exceptions[%d]: criterion and resource_persistent_id are required", i)
		}
		if _, _, err := parseWindow(e.DateCreated, e.DateExpires); err != nil {
			return fmt.Errorf("exceptions[%d]: %w", i, err)
		}
	}
	for i, a := range c.Allowlist {
		if a.CIDR == "" {
			return fmt.Errorf("allowlist[%d]: cidr is required", i)
		}
		if _, _, err := parseWindow(a.DateCreated, a.DateExpires); err != nil {
			return fmt.Errorf("allowlist[%d]: %w", i, err)
		}
	}
	return nil
}

// BuildExceptionStore populates an in-memory exception store from the
// configured register. Load has already validated the date windows.
func (c *Config) BuildExceptionStore() *exceptions.MemoryStore {
	store := exceptions.NewMemoryStore()
	for _, e := range c.Exceptions {
		created, expires, err := parseWindow(e.DateCreated, e.DateExpires)
		if err != nil {
			continue
		}
		store.AddException(exceptions.Exception{
			CriterionName:        e.Criterion,
			ResourcePersistentID: e.PersistentID,
			AccountID:            e.AccountID,
			Reason:               e.Reason,
			DateCreated:          created,
			DateExpires:          expires,
		})
	}
	for _, a := range c.Allowlist {
		created, expires, err := parseWindow(a.DateCreated, a.DateExpires)
		if err != nil {
			continue
		}
		store.AddAllowlistEntry(exceptions.AllowlistEntry{
			AccountID:   a.AccountID,
			CIDR:        a.CIDR,
			Reason:      a.Reason,
			DateCreated: created,
			DateExpires: expires,
		})
	}
	return store
}

// parseWindow parses a created/expires date pair and checks its ordering.
func parseWindow(created, expires string) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, created)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date_created %q: %w", created, err)
	}
	to, err := time.Parse(dateLayout, expires)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date_expires %q: %w", expires, err)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date_expires %q is not after date_created %q", expires, created)
	}
	return from, to, nil
}

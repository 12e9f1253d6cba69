// Package config loads the netprobe configuration file. Each discovery
// phase owns its own settings struct; this package only assembles them,
// applies defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netprobe/internal/arp"
	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/netutil"
	"github.com/anstrom/netprobe/internal/resolve"
	"github.com/anstrom/netprobe/internal/scanning"
	"github.com/anstrom/netprobe/internal/snmp"
	"github.com/anstrom/netprobe/internal/store"
)

const (
	configDirPerm  = 0755
	configFilePerm = 0644
)

// Config represents the complete netprobe configuration.
type Config struct {
	// Target range and exclusions
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`

	// Discovery phases
	ARP  arp.Config      `yaml:"arp" json:"arp"`
	Nmap scanning.Config `yaml:"nmap" json:"nmap"`
	SNMP snmp.Config     `yaml:"snmp" json:"snmp"`

	// Reverse lookups shared by the phases
	DNS resolve.Config `yaml:"dns" json:"dns"`

	// Vendor tables
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Result persistence
	Database store.Config `yaml:"database" json:"database"`

	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Logging  logging.Config `yaml:"logging" json:"logging"`
}

// DiscoveryConfig holds the default target.
type DiscoveryConfig struct {
	// Network is the CIDR range to discover. It may be left empty and
	// supplied on the command line instead.
	Network    string   `yaml:"network" json:"network"`
	Exclusions []string `yaml:"exclusions" json:"exclusions"`
	// Timeout bounds a whole run, 0 means no limit.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// CatalogConfig points at an optional vendor catalog file.
type CatalogConfig struct {
	File string `yaml:"file" json:"file"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile is written in the node_exporter textfile format after
	// every run. Empty disables the export.
	Textfile string `yaml:"textfile" json:"textfile"`
}

// ScheduleConfig holds the recurring discovery settings.
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
	// Output is a directory that receives one result file per run.
	Output string `yaml:"output" json:"output"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Exclusions: []string{},
		},
		ARP:      arp.DefaultConfig(),
		Nmap:     scanning.DefaultConfig(),
		SNMP:     snmp.DefaultConfig(),
		DNS:      resolve.DefaultConfig(),
		Database: store.DefaultConfig(),
		Schedule: ScheduleConfig{
			Cron: "@every 1h",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder serves both.
	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config (assumed YAML): %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate checks struct tag constraints first, then the rules that span
// several fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperrors.NewConfigFieldError(apperrors.CodeValidation,
				fmt.Sprintf("failed %q constraint", fe.Tag()), fe.Namespace(), fe.Value())
		}
		return apperrors.WrapConfigError(apperrors.CodeValidation, "invalid configuration", err)
	}

	if c.Discovery.Network != "" && !netutil.ValidateCIDR(c.Discovery.Network) {
		return apperrors.ErrConfigInvalid("discovery.network", c.Discovery.Network)
	}
	if _, err := netutil.NewExclusionSet(c.Discovery.Exclusions); err != nil {
		return apperrors.WrapConfigError(apperrors.CodeValidation, "invalid discovery.exclusions", err)
	}
	if err := c.Nmap.Validate(); err != nil {
		return apperrors.WrapConfigError(apperrors.CodeValidation, "invalid nmap settings", err)
	}
	if err := c.SNMP.Validate(); err != nil {
		return apperrors.WrapConfigError(apperrors.CodeValidation, "invalid snmp settings", err)
	}
	for _, server := range c.DNS.Servers {
		if server == "" {
			return apperrors.ErrConfigInvalid("dns.servers", server)
		}
	}
	if c.Catalog.File != "" {
		if _, err := os.Stat(c.Catalog.File); err != nil {
			return apperrors.WrapConfigError(apperrors.CodeConfiguration, "catalog file is not readable", err)
		}
	}

	return nil
}

// DiscoveryTimeout returns the run timeout, zero when unbounded.
func (c *Config) DiscoveryTimeout() time.Duration {
	return c.Discovery.Timeout
}

// IsDatabaseEnabled returns true if results should be persisted.
func (c *Config) IsDatabaseEnabled() bool {
	return c.Database.Enabled
}

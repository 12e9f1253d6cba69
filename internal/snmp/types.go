package snmp

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	defaultPort        = 161
	defaultTimeout     = 2 * time.Second
	defaultRetries     = 1
	defaultMaxParallel = 20

	// MaxInterfaces bounds the per-index interface walk.
	MaxInterfaces = 50

	version1  = "1"
	version2c = "2c"

	maskedCommunity = "***"
)

// Config holds the SNMP phase settings.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Versions are tried in order for every community.
	Versions    []string      `yaml:"versions" json:"versions" validate:"dive,oneof=1 2c"`
	Communities []string      `yaml:"communities" json:"communities" validate:"dive,required"`
	Port        uint16        `yaml:"port" json:"port"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Retries     int           `yaml:"retries" json:"retries" validate:"min=0,max=10"`
	MaxParallel int           `yaml:"max_parallel" json:"max_parallel" validate:"min=1,max=1024"`
	// MaxInterfaces lowers the interface walk cap; values above
	// MaxInterfaces are clamped.
	MaxInterfaces int     `yaml:"max_interfaces" json:"max_interfaces" validate:"min=0"`
	RateLimit     float64 `yaml:"rate_limit" json:"rate_limit" validate:"min=0"`
	// MaskCommunity hides the community string in results and info.
	MaskCommunity bool `yaml:"mask_community" json:"mask_community"`
}

// DefaultConfig returns the default SNMP settings.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Versions:      []string{version2c, version1},
		Communities:   []string{"public"},
		Port:          defaultPort,
		Timeout:       defaultTimeout,
		Retries:       defaultRetries,
		MaxParallel:   defaultMaxParallel,
		MaxInterfaces: MaxInterfaces,
		MaskCommunity: true,
	}
}

// Validate checks the settings that struct tags cannot express.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Versions) == 0 {
		return fmt.Errorf("no SNMP versions configured")
	}
	if len(c.Communities) == 0 {
		return fmt.Errorf("no SNMP communities configured")
	}
	for _, v := range c.Versions {
		if _, err := ParseVersion(v); err != nil {
			return err
		}
	}
	return nil
}

// ParseVersion maps a configured version name to the protocol version.
func ParseVersion(name string) (gosnmp.SnmpVersion, error) {
	switch name {
	case version1:
		return gosnmp.Version1, nil
	case version2c:
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported SNMP version: %q", name)
	}
}

// Stats is the SNMP block of the result statistics.
type Stats struct {
	HostsTested      int            `json:"hosts_tested"`
	Responsive       int            `json:"snmp_responsive"`
	VersionsUsed     map[string]int `json:"versions_accessible"`
	OIDsCollected    int            `json:"oids_collected"`
	CommunitiesTried int            `json:"communities_tried"`
	DurationSeconds  float64        `json:"duration_seconds"`
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.ARP.Enabled)
	assert.Equal(t, 50, cfg.ARP.MaxParallel)
	assert.Equal(t, 1, cfg.ARP.PingCount)
	assert.Equal(t, time.Second, cfg.ARP.PingTimeout)

	assert.True(t, cfg.Nmap.Enabled)
	assert.Equal(t, 4, cfg.Nmap.Timing)
	assert.Equal(t, 5, cfg.Nmap.VersionIntensity)
	assert.True(t, cfg.Nmap.OSDetection)
	assert.Equal(t, []string{"default"}, cfg.Nmap.Scripts)
	assert.Equal(t, 5*time.Minute, cfg.Nmap.HostTimeout)

	assert.Equal(t, []string{"2c", "1"}, cfg.SNMP.Versions)
	assert.Equal(t, []string{"public"}, cfg.SNMP.Communities)
	assert.Equal(t, 2*time.Second, cfg.SNMP.Timeout)
	assert.Equal(t, 1, cfg.SNMP.Retries)
	assert.Equal(t, 20, cfg.SNMP.MaxParallel)
	assert.Equal(t, 50, cfg.SNMP.MaxInterfaces)
	assert.True(t, cfg.SNMP.MaskCommunity)

	assert.False(t, cfg.IsDatabaseEnabled())
	assert.Equal(t, logging.LevelInfo, cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "valid yaml config",
			path: func(t *testing.T) string {
				return writeConfig(t, "netprobe.yaml", `
discovery:
  network: 192.168.1.0/24
  exclusions: [192.168.1.1, 192.168.1.128/28]
  timeout: 10m
arp:
  max_parallel: 16
snmp:
  communities: [public, private]
  versions: ["2c"]
  timeout: 500ms
database:
  enabled: true
  host: db.internal
  database: netprobe
  username: netprobe
logging:
  level: debug
  format: json
`)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "192.168.1.0/24", cfg.Discovery.Network)
				assert.Equal(t, []string{"192.168.1.1", "192.168.1.128/28"}, cfg.Discovery.Exclusions)
				assert.Equal(t, 10*time.Minute, cfg.DiscoveryTimeout())
				assert.Equal(t, 16, cfg.ARP.MaxParallel)
				assert.Equal(t, 1, cfg.ARP.PingCount, "unset fields keep defaults")
				assert.Equal(t, []string{"public", "private"}, cfg.SNMP.Communities)
				assert.Equal(t, 500*time.Millisecond, cfg.SNMP.Timeout)
				assert.True(t, cfg.IsDatabaseEnabled())
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
			},
		},
		{
			name: "json config",
			path: func(t *testing.T) string {
				return writeConfig(t, "netprobe.json", `{"nmap": {"tcp_ports": "22,443", "timing": 3}}`)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "22,443", cfg.Nmap.TCPPorts)
				assert.Equal(t, 3, cfg.Nmap.Timing)
			},
		},
		{
			name: "missing file returns defaults",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent.yaml")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "invalid yaml",
			path: func(t *testing.T) string {
				return writeConfig(t, "netprobe.yaml", "arp: [unclosed")
			},
			wantErr: true,
		},
		{
			name: "invalid network",
			path: func(t *testing.T) string {
				return writeConfig(t, "netprobe.yaml", "discovery:\n  network: 10.0.0.300/24\n")
			},
			wantErr: true,
		},
		{
			name: "database enabled without name",
			path: func(t *testing.T) string {
				return writeConfig(t, "netprobe.yml", "database:\n  enabled: true\n  username: u\n")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.path(t))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Discovery.Network = "10.1.0.0/16"
	cfg.SNMP.Communities = []string{"ops"}

	path := filepath.Join(t.TempDir(), "nested", "netprobe.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.0/16", loaded.Discovery.Network)
	assert.Equal(t, []string{"ops"}, loaded.SNMP.Communities)
	assert.Equal(t, cfg.Nmap, loaded.Nmap)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		code   apperrors.ErrorCode
	}{
		{
			name:   "timing out of range",
			modify: func(c *Config) { c.Nmap.Timing = 6 },
			code:   apperrors.CodeValidation,
		},
		{
			name:   "unknown snmp version",
			modify: func(c *Config) { c.SNMP.Versions = []string{"3"} },
			code:   apperrors.CodeValidation,
		},
		{
			name:   "snmp without communities",
			modify: func(c *Config) { c.SNMP.Communities = nil },
			code:   apperrors.CodeValidation,
		},
		{
			name:   "nmap without ports",
			modify: func(c *Config) { c.Nmap.TCPPorts, c.Nmap.UDPPorts = "", "" },
			code:   apperrors.CodeValidation,
		},
		{
			name:   "bad exclusion",
			modify: func(c *Config) { c.Discovery.Exclusions = []string{"not-an-ip"} },
			code:   apperrors.CodeValidation,
		},
		{
			name:   "bad log level",
			modify: func(c *Config) { c.Logging.Level = "verbose" },
			code:   apperrors.CodeValidation,
		},
		{
			name:   "missing catalog file",
			modify: func(c *Config) { c.Catalog.File = "/nonexistent/catalog.yaml" },
			code:   apperrors.CodeConfiguration,
		},
		{
			name:   "disabled phases skip their checks",
			modify: func(c *Config) {
				c.SNMP.Enabled = false
				c.SNMP.Communities = nil
				c.Nmap.Enabled = false
				c.Nmap.TCPPorts, c.Nmap.UDPPorts = "", ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

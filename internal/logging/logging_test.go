package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		want  string
	}{
		{"debug", LevelDebug, "DEBUG"},
		{"info", LevelInfo, "INFO"},
		{"warn", LevelWarn, "WARN"},
		{"warning alias", "warning", "WARN"},
		{"error", LevelError, "ERROR"},
		{"upper case", "DEBUG", "DEBUG"},
		{"unknown falls back to info", "verbose", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level).String())
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestJSONOutputCarriesPhaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelDebug, Format: FormatJSON}, &buf)

	logger.InfoPhase("phase finished", "arp", "devices", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "phase finished", entry["msg"])
	assert.Equal(t, "arp", entry["phase"])
	assert.EqualValues(t, 3, entry["devices"])
}

func TestErrorPhaseIncludesError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelInfo, Format: FormatText}, &buf)

	logger.ErrorPhase("phase failed", "nmap", errors.New("nmap binary not found"))

	out := buf.String()
	assert.Contains(t, out, "phase=nmap")
	assert.Contains(t, out, "nmap binary not found")
	assert.Contains(t, out, "level=ERROR")
}

func TestDebugHostRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelInfo}, &buf)

	logger.DebugHost("snmp unreachable", "10.0.0.5")
	assert.Empty(t, buf.String())

	logger = NewWithWriter(Config{Level: LevelDebug}, &buf)
	logger.DebugHost("snmp unreachable", "10.0.0.5")
	assert.Contains(t, buf.String(), "host=10.0.0.5")
}

func TestWithHelpersChain(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: LevelDebug}, &buf).
		WithComponent("discovery").
		WithPhase("snmp").
		WithHost("192.168.1.1").
		WithScanID("abc")

	logger.Info("collected")

	out := buf.String()
	for _, want := range []string{"component=discovery", "phase=snmp", "host=192.168.1.1", "scan_id=abc"} {
		assert.Contains(t, out, want)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netprobe.log")

	logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: path})
	require.NoError(t, err)

	logger.InfoDiscovery("discovery started", "10.0.0.0/24")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "network=10.0.0.0/24"))
}

func TestNopDiscards(t *testing.T) {
	logger := NewNop()
	require.NotNil(t, logger)
	logger.Error("ignored")
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(Config{Level: LevelDebug}, &buf))

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "msg="))
}

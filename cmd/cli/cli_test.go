package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/device"
	"github.com/anstrom/netprobe/internal/discovery"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scheduler"
	"github.com/anstrom/netprobe/internal/store"
)

func sampleResult() *discovery.Result {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &discovery.Result{
		Metadata: discovery.Metadata{
			ScanID:          "5f0c2a43-6f0e-4d7a-9a53-1f4b7e0c2d11",
			StartTime:       start,
			EndTime:         start.Add(8 * time.Second),
			Target:          "192.168.1.0/24",
			DurationSeconds: 8,
			TotalDevices:    1,
			ScanMethodsUsed: []device.Method{device.MethodARP, device.MethodNmap},
		},
		Devices: []*device.Device{{
			IP:               "192.168.1.10",
			MAC:              "00:11:22:33:44:55",
			Hostname:         "printer.lan",
			Vendor:           "HP",
			DeviceType:       device.TypePrinter,
			DiscoveryMethods: []device.Method{device.MethodARP, device.MethodNmap},
			OSInfo:           device.OSInfo{Name: "HP embedded"},
			Services: []device.Service{
				{Port: 80, Protocol: "tcp", Name: "http", State: "open"},
				{Port: 443, Protocol: "tcp", Name: "https", State: "open"},
				{Port: 515, Protocol: "tcp", Name: "printer", State: "open"},
				{Port: 631, Protocol: "tcp", Name: "ipp", State: "open"},
				{Port: 9100, Protocol: "tcp", Name: "jetdirect", State: "open"},
			},
		}},
		Statistics: map[string]any{},
		Errors: []discovery.ErrorEntry{{
			Kind:    "snmp_scan_error",
			Code:    "SCAN_FAILED",
			Message: "phase failed",
			Phase:   device.MethodSNMP,
		}},
	}
}

func TestTargetSpec(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.Network = "10.0.0.0/24"
	cfg.Discovery.Exclusions = []string{"10.0.0.1"}

	spec, err := targetSpec(cfg, nil, []string{"10.0.0.128/25"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", spec.Network)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.128/25"}, spec.Exclusions)
	assert.Equal(t, []string{"10.0.0.1"}, cfg.Discovery.Exclusions, "config must not be modified")

	spec, err = targetSpec(cfg, []string{"192.168.5.0/24"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "192.168.5.0/24", spec.Network)

	cfg.Discovery.Network = ""
	_, err = targetSpec(cfg, nil, nil)
	assert.Error(t, err)
}

func TestApplyDiscoverFlags(t *testing.T) {
	flags := pflag.NewFlagSet("discover", pflag.ContinueOnError)
	flags.Bool("no-arp", false, "")
	flags.Bool("no-nmap", false, "")
	flags.Bool("no-snmp", false, "")
	flags.Bool("save", false, "")
	flags.Duration("timeout", 0, "")
	flags.String("nmap-xml", "", "")
	flags.String("ports", "", "")
	require.NoError(t, flags.Parse([]string{"--no-snmp", "--timeout", "90s", "--nmap-xml", "scan.xml", "--save"}))

	cfg := config.Default()
	applyDiscoverFlags(flags, cfg)

	assert.True(t, cfg.ARP.Enabled, "unset flags leave the config alone")
	assert.True(t, cfg.Nmap.Enabled)
	assert.False(t, cfg.SNMP.Enabled)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Discovery.Timeout)
	assert.Equal(t, "scan.xml", cfg.Nmap.XMLInput)
	assert.NotEmpty(t, cfg.Nmap.TCPPorts)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("network", "172.16.0.0/24")
	viper.Set("snmp_communities", []string{"ops", "public"})
	viper.Set("log_level", "debug")

	cfg := config.Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "172.16.0.0/24", cfg.Discovery.Network)
	assert.Equal(t, []string{"ops", "public"}, cfg.SNMP.Communities)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"72h", 72 * time.Hour, false},
		{" 15m ", 15 * time.Minute, false},
		{"xd", 0, true},
		{"-1d", 0, true},
		{"-5h", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("table"))
	assert.Error(t, validateFormat("xml"))
}

func TestRenderResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, formatJSON, sampleResult()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Contains(t, doc, "scan_metadata")
	assert.Contains(t, doc, "devices")
	assert.Contains(t, doc, "statistics")
	assert.Contains(t, doc, "errors")
}

func TestRenderDeviceTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, formatTable, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "192.168.1.10")
	assert.Contains(t, out, "printer.lan")
	assert.Contains(t, out, "arp,nmap")
	assert.Contains(t, out, "1 devices on 192.168.1.0/24")
	assert.Contains(t, out, "snmp_scan_error [SCAN_FAILED]: phase failed")
}

func TestFormatServices(t *testing.T) {
	services := sampleResult().Devices[0].Services
	assert.Equal(t, "80/tcp http, 443/tcp https, 515/tcp printer, 631/tcp ipp, +1", formatServices(services))
	assert.Equal(t, "161/udp", formatServices([]device.Service{{Port: 161, Protocol: "udp"}}))
	assert.Empty(t, formatServices(nil))
}

func TestWriteResultToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")
	require.NoError(t, writeResult(nil, path, formatJSON, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got discovery.Result
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "192.168.1.0/24", got.Metadata.Target)
	require.Len(t, got.Devices, 1)
	assert.Equal(t, "192.168.1.10", got.Devices[0].IP)
}

func TestResultFileWriter(t *testing.T) {
	dir := t.TempDir()
	write := resultFileWriter(dir, logging.NewNop())
	write(scheduler.JobStatus{Name: "lan"}, sampleResult())

	_, err := os.Stat(filepath.Join(dir, "lan-20240301T100000Z.json"))
	assert.NoError(t, err)

	assert.NotPanics(t, func() {
		resultFileWriter("", logging.NewNop())(scheduler.JobStatus{Name: "lan"}, sampleResult())
	})
}

func TestRenderRuns(t *testing.T) {
	runs := []store.RunSummary{{
		ID:              uuid.MustParse("5f0c2a43-6f0e-4d7a-9a53-1f4b7e0c2d11"),
		Target:          "10.0.0.0/24",
		StartedAt:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationSeconds: 12.34,
		TotalDevices:    7,
		Methods:         pq.StringArray{"arp", "snmp"},
	}}

	var buf bytes.Buffer
	require.NoError(t, renderRuns(&buf, formatTable, runs))
	assert.Contains(t, buf.String(), "5f0c2a43-6f0e-4d7a-9a53-1f4b7e0c2d11")
	assert.Contains(t, buf.String(), "12.3s")
	assert.Contains(t, buf.String(), "arp,snmp")

	buf.Reset()
	require.NoError(t, renderRuns(&buf, formatJSON, runs))
	assert.Contains(t, buf.String(), `"total_devices": 7`)
}

func TestNewRunnerBuildsPhasesInOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Nmap.XMLInput = "saved.xml"
	cfg.SNMP.Communities = []string{"secret"}

	r, err := newRunner(cfg, logging.NewNop())
	require.NoError(t, err)

	infos := r.engine.Info()
	require.Len(t, infos, 3)
	assert.Equal(t, device.MethodARP, infos[0].Method)
	assert.Equal(t, device.MethodNmap, infos[1].Method)
	assert.Equal(t, device.MethodSNMP, infos[2].Method)
	assert.Equal(t, "replay of saved.xml", infos[1].Tooling)

	var buf bytes.Buffer
	require.NoError(t, renderInfo(&buf, formatTable, infos))
	assert.Contains(t, buf.String(), "SNMP Scanner")
	assert.NotContains(t, buf.String(), "secret")
}

func TestNewRunnerMissingCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.File = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := newRunner(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestFormatSettings(t *testing.T) {
	assert.Equal(t, "a=1\nb=[x y]", formatSettings(map[string]any{"b": []string{"x", "y"}, "a": 1}))
	assert.Empty(t, formatSettings(nil))
}

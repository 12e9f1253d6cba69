package scanning

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/catalog"
	"github.com/anstrom/netprobe/internal/device"
	"github.com/anstrom/netprobe/internal/discovery"
	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
)

type fakeRunner struct {
	run      *nmap.Run
	warnings []string
	err      error
	calls    int
	opts     int
}

func (f *fakeRunner) Run(_ context.Context, opts []nmap.Option) (*nmap.Run, []string, error) {
	f.calls++
	f.opts = len(opts)
	return f.run, f.warnings, f.err
}

type stubResolver map[string]string

func (s stubResolver) LookupHostname(_ context.Context, ip string) string {
	return s[ip]
}

func loadSample(t *testing.T) *nmap.Run {
	t.Helper()
	data, err := os.ReadFile("testdata/sample.xml")
	require.NoError(t, err)
	run := &nmap.Run{}
	require.NoError(t, nmap.Parse(data, run))
	return run
}

func newTestProber(cfg Config, runner Runner, opts ...Option) *Prober {
	opts = append([]Option{
		WithRunner(runner),
		WithLogger(logging.NewNop()),
		WithResolver(stubResolver{"192.168.1.20": "printer.lan"}),
	}, opts...)
	p := New(cfg, catalog.Default(), opts...)
	p.version = func(context.Context, string) (string, error) { return "7.94", nil }
	return p
}

func byIP(recs []device.ProbeRecord) map[string]device.ProbeRecord {
	out := make(map[string]device.ProbeRecord, len(recs))
	for _, r := range recs {
		out[r.IP] = r
	}
	return out
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "port zero allowed", mutate: func(c *Config) { c.TCPPorts = "0" }},
		{name: "range", mutate: func(c *Config) { c.TCPPorts = "1-1024, 8080" }},
		{name: "udp only", mutate: func(c *Config) { c.TCPPorts = "" }},
		{name: "no ports", mutate: func(c *Config) { c.TCPPorts, c.UDPPorts = "", "" }, wantError: true},
		{name: "invalid scan type", mutate: func(c *Config) { c.ScanType = "xmas" }, wantError: true},
		{name: "invalid port format", mutate: func(c *Config) { c.TCPPorts = "invalid" }, wantError: true},
		{name: "port out of range", mutate: func(c *Config) { c.UDPPorts = "65536" }, wantError: true},
		{name: "negative port", mutate: func(c *Config) { c.TCPPorts = "-80" }, wantError: true},
		{name: "reversed range", mutate: func(c *Config) { c.TCPPorts = "90-80" }, wantError: true},
		{name: "bad range", mutate: func(c *Config) { c.TCPPorts = "1-2-3" }, wantError: true},
		{name: "disabled skips checks", mutate: func(c *Config) { c.Enabled, c.TCPPorts = false, "nope" }},
		{name: "replay skips checks", mutate: func(c *Config) { c.XMLInput, c.TCPPorts, c.UDPPorts = "scan.xml", "", "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScanPlan(t *testing.T) {
	target := discovery.Target{Network: "10.0.0.0/24", Exclusions: []string{"10.0.0.0", "10.0.0.255"}}

	t.Run("tcp and udp", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TCPPorts = "22, 80 ,443"
		cfg.UDPPorts = "161"
		cfg.ScanType = "syn"

		plan, err := newScanPlan(cfg, target)
		require.NoError(t, err)
		assert.Equal(t, "T:22,80,443,U:161", plan.portSpec())
		assert.Equal(t, scanTypeSYN, plan.tcpScan)
		assert.True(t, plan.udpScan)
		assert.Equal(t, []string{"10.0.0.0/24"}, plan.targets)
		assert.Equal(t, target.Exclusions, plan.exclusions)
	})

	t.Run("tcp only", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TCPPorts = "22"
		cfg.UDPPorts = ""
		cfg.ScanType = ""

		plan, err := newScanPlan(cfg, target)
		require.NoError(t, err)
		assert.Equal(t, "22", plan.portSpec())
		assert.Equal(t, scanTypeConnect, plan.tcpScan)
		assert.False(t, plan.udpScan)
	})

	t.Run("udp only", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TCPPorts = ""
		cfg.UDPPorts = "53,161"

		plan, err := newScanPlan(cfg, target)
		require.NoError(t, err)
		assert.Equal(t, "53,161", plan.portSpec())
		assert.Empty(t, plan.tcpScan)
		assert.True(t, plan.udpScan)
	})

	t.Run("options follow config", func(t *testing.T) {
		cfg := DefaultConfig()
		plan, err := newScanPlan(cfg, target)
		require.NoError(t, err)
		base := len(plan.options(cfg))

		cfg.OSScanGuess = true
		cfg.SkipHostDiscovery = true
		cfg.BinaryPath = "/opt/nmap/bin/nmap"
		assert.Equal(t, base+3, len(plan.options(cfg)))

		cfg.ServiceDetection = false
		cfg.OSDetection = false
		cfg.Scripts = nil
		assert.Equal(t, base+3-2-2-1, len(plan.options(cfg)))
	})

	t.Run("missing network", func(t *testing.T) {
		_, err := newScanPlan(DefaultConfig(), discovery.Target{})
		assert.Error(t, err)
	})
}

func TestScanNormalizesHosts(t *testing.T) {
	runner := &fakeRunner{run: loadSample(t), warnings: []string{"OS detection is less accurate"}}
	p := newTestProber(DefaultConfig(), runner)

	result, err := p.Scan(context.Background(), discovery.Target{Network: "192.168.1.0/24"})
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	require.Len(t, result.Records, 2)

	hosts := byIP(result.Records)

	router := hosts["192.168.1.1"]
	assert.Equal(t, device.MethodNmap, router.Method)
	assert.Equal(t, "00:00:0c:11:22:33", router.MAC)
	assert.Equal(t, "Cisco Systems", router.Vendor)
	assert.Equal(t, "router.lan", router.Hostname)
	assert.Equal(t, device.TypeNetworkDevice, router.DeviceType)
	require.NotNil(t, router.ResponseTime)
	assert.InDelta(t, 1.52, *router.ResponseTime, 1e-9)

	require.NotNil(t, router.OSInfo)
	assert.Equal(t, "Cisco IOS 15.X", router.OSInfo.Name)
	assert.Equal(t, 95, router.OSInfo.Accuracy)
	assert.Equal(t, "IOS", router.OSInfo.Family)
	assert.Equal(t, "router", router.OSInfo.Type)
	assert.Equal(t, "15.X", router.OSInfo.Generation)
	assert.Equal(t, []string{"cpe:/o:cisco:ios:15"}, router.OSInfo.CPE)
	assert.Len(t, router.OSInfo.Matches, 2)

	require.Len(t, router.Services, 3)
	ssh := router.Services[0]
	assert.Equal(t, device.Service{
		Port:     22,
		Protocol: "tcp",
		Name:     "ssh",
		Version:  "Cisco SSH 1.25 protocol 2.0",
		State:    "open",
		Banner:   "SSH-2.0-Cisco-1.25",
	}, ssh)
	assert.Equal(t, "filtered", router.Services[1].State)
	assert.Equal(t, "udp", router.Services[2].Protocol)
	assert.Contains(t, router.Details, "scripts")

	printer := hosts["192.168.1.20"]
	assert.Empty(t, printer.MAC)
	assert.Equal(t, "printer.lan", printer.Hostname)
	assert.Equal(t, device.TypePrinter, printer.DeviceType)
	assert.Nil(t, printer.OSInfo)
	assert.Len(t, printer.Services, 2)
	assert.Empty(t, printer.Vendor)

	stats, ok := result.Stats.(*Stats)
	require.True(t, ok)
	assert.Equal(t, 254, stats.HostsTargeted)
	assert.Equal(t, 2, stats.HostsUp)
	assert.Equal(t, 9, stats.PortsProbed)
	assert.Equal(t, 4, stats.OpenPorts)
	assert.Equal(t, 1, stats.HostsWithOS)
	assert.Equal(t, "7.94", stats.NmapVersion)
	assert.Contains(t, stats.CommandLine, "-sV")
	assert.Equal(t, []string{"OS detection is less accurate"}, stats.Warnings)
	assert.False(t, stats.Replayed)
}

func TestScanReplay(t *testing.T) {
	runner := &fakeRunner{err: errors.New("must not run")}
	cfg := DefaultConfig()
	cfg.XMLInput = "testdata/sample.xml"
	p := newTestProber(cfg, runner)

	result, err := p.Scan(context.Background(), discovery.Target{Network: "192.168.1.0/24"})
	require.NoError(t, err)
	assert.Zero(t, runner.calls)

	ips := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		ips = append(ips, r.IP)
	}
	sort.Strings(ips)
	assert.Equal(t, []string{"192.168.1.1", "192.168.1.20"}, ips)
	assert.True(t, result.Stats.(*Stats).Replayed)
	assert.Equal(t, "replay of testdata/sample.xml", p.Info().Tooling)
}

func TestScanReplayErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.XMLInput = "testdata/does-not-exist.xml"
		p := newTestProber(cfg, &fakeRunner{})

		_, err := p.Scan(context.Background(), discovery.Target{Network: "192.168.1.0/24"})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
	})

	t.Run("not xml", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.XMLInput = "report.xml"
		p := newTestProber(cfg, &fakeRunner{})
		p.readFile = func(string) ([]byte, error) { return []byte("<nmaprun><host>"), nil }

		_, err := p.Scan(context.Background(), discovery.Target{Network: "192.168.1.0/24"})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeParseFailed))
	})
}

func TestScanInvocationFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"not installed", nmap.ErrNmapNotInstalled, apperrors.CodeToolUnavailable},
		{"timeout", nmap.ErrScanTimeout, apperrors.CodeTimeout},
		{"other", errors.New("exit status 1"), apperrors.CodeScanFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProber(DefaultConfig(), &fakeRunner{err: tt.err})
			result, err := p.Scan(context.Background(), discovery.Target{Network: "10.0.0.0/24"})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperrors.IsCode(err, tt.want), "got %v", err)
		})
	}
}

func TestScanInvalidArguments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TCPPorts = "http"
	runner := &fakeRunner{}
	p := newTestProber(cfg, runner)

	_, err := p.Scan(context.Background(), discovery.Target{Network: "10.0.0.0/24"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Zero(t, runner.calls)
}

func TestScanNilRun(t *testing.T) {
	p := newTestProber(DefaultConfig(), &fakeRunner{})
	_, err := p.Scan(context.Background(), discovery.Target{Network: "10.0.0.0/24"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeParseFailed))
}

func TestScanDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	runner := &fakeRunner{}
	p := newTestProber(cfg, runner)

	assert.False(t, p.Enabled())
	result, err := p.Scan(context.Background(), discovery.Target{Network: "10.0.0.0/24"})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Zero(t, runner.calls)
}

func TestInfo(t *testing.T) {
	p := newTestProber(DefaultConfig(), &fakeRunner{})
	info := p.Info()

	assert.Equal(t, "Nmap Scanner", info.Name)
	assert.Equal(t, device.MethodNmap, info.Method)
	assert.Equal(t, "7.94", info.Version)
	assert.Equal(t, "nmap", info.Tooling)
	assert.Equal(t, 4, info.Config["timing"])
	assert.Equal(t, "5m0s", info.Config["host_timeout"])
}

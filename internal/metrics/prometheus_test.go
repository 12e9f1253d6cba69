package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_PhaseCounters(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.HostsProbed("arp", 254)
	pm.PhaseCompleted("arp", 3*time.Second, 12)
	pm.PhaseCompleted("arp", time.Second, 3)
	pm.PhaseFailed("nmap", "TOOL_UNAVAILABLE")

	assert.Equal(t, 254.0, testutil.ToFloat64(pm.hostsProbed.WithLabelValues("arp")))
	assert.Equal(t, 15.0, testutil.ToFloat64(pm.hostsFound.WithLabelValues("arp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.phaseErrors.WithLabelValues("nmap", "TOOL_UNAVAILABLE")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.phaseDuration))
}

func TestPrometheusMetrics_RunCounters(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.DevicesReported(5, 2)
	pm.RunCompleted("success", 42*time.Second)

	assert.Equal(t, 5.0, testutil.ToFloat64(pm.devicesReported))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.devicesFiltered))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.runsTotal.WithLabelValues("success")))
	assert.Greater(t, testutil.ToFloat64(pm.lastRun), 0.0)
}

func TestPrometheusMetrics_WriteTextfile(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.PhaseCompleted("snmp", time.Second, 4)

	path := filepath.Join(t.TempDir(), "netprobe.prom")
	require.NoError(t, pm.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.Contains(body, `netprobe_phase_hosts_found_total{method="snmp"} 4`))
	assert.Contains(t, body, "go_goroutines")

	err = pm.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.PhaseCompleted("arp", time.Second, 1)
	r.PhaseFailed("arp", "SCAN_FAILED")
	r.HostsProbed("arp", 1)
	r.DevicesReported(1, 1)
	r.RunCompleted("success", time.Second)
}

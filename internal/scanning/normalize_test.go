package scanning

import (
	"testing"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/device"
)

func ports(p ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(p))
	for _, n := range p {
		set[n] = struct{}{}
	}
	return set
}

func TestClassifyDeviceType(t *testing.T) {
	tests := []struct {
		name string
		open map[int]struct{}
		want device.Type
	}{
		{"snmp with ssh", ports(161, 22), device.TypeNetworkDevice},
		{"snmp with https beats web", ports(161, 443), device.TypeNetworkDevice},
		{"snmp alone", ports(161), device.TypeUnknown},
		{"web", ports(8080), device.TypeWebServer},
		{"web beats mail", ports(80, 25), device.TypeWebServer},
		{"mail", ports(25, 587), device.TypeMailServer},
		{"database", ports(5432), device.TypeDatabaseServer},
		{"printer", ports(9100), device.TypePrinter},
		{"windows", ports(445, 3389), device.TypeWorkstation},
		{"database beats windows", ports(1433, 445), device.TypeDatabaseServer},
		{"ssh only", ports(22), device.TypeWorkstation},
		{"ssh with few others", ports(22, 111, 2049, 5000), device.TypeWorkstation},
		{"ssh with many others", ports(22, 111, 2049, 5000, 6000), device.TypeUnknown},
		{"nothing", ports(), device.TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDeviceType(tt.open))
		})
	}
}

func TestServiceVersion(t *testing.T) {
	assert.Equal(t, "nginx 1.25.3 Ubuntu", serviceVersion(nmap.Service{Product: "nginx", Version: "1.25.3", ExtraInfo: "Ubuntu"}))
	assert.Equal(t, "OpenSSH", serviceVersion(nmap.Service{Product: "OpenSSH", Version: " "}))
	assert.Empty(t, serviceVersion(nmap.Service{Name: "http"}))
}

func TestOSInfoPicksMostAccurate(t *testing.T) {
	info := osInfo([]nmap.OSMatch{
		{Name: "Linux 4.X", Accuracy: 88},
		{Name: "Linux 5.X", Accuracy: 97, Classes: []nmap.OSClass{{Family: "Linux", Vendor: "Linux", Type: "general purpose"}}},
	})
	require.NotNil(t, info)
	assert.Equal(t, "Linux 5.X", info.Name)
	assert.Equal(t, "Linux", info.Family)
	assert.Len(t, info.Matches, 2)
	assert.Equal(t, "Linux 4.X", info.Matches[0].Name)

	assert.Nil(t, osInfo(nil))
}

func TestSRTTMillis(t *testing.T) {
	v := srttMillis("2500")
	require.NotNil(t, v)
	assert.Equal(t, 2.5, *v)
	assert.Nil(t, srttMillis(""))
	assert.Nil(t, srttMillis("fast"))
}

func TestServiceListSkipsClosed(t *testing.T) {
	services, scripts := serviceList([]nmap.Port{
		{ID: 80, Protocol: "tcp", State: nmap.State{State: "closed"}},
		{ID: 53, Protocol: "udp", State: nmap.State{State: "open|filtered"}, Service: nmap.Service{Name: "domain"}},
		{ID: 443, Protocol: "tcp", State: nmap.State{State: "open"}, Service: nmap.Service{Name: "https"},
			Scripts: []nmap.Script{{ID: "ssl-cert", Output: " Subject: commonName=nas.lan \n"}}},
	})

	require.Len(t, services, 2)
	assert.Equal(t, 53, services[0].Port)
	assert.Equal(t, "https", services[1].Name)
	assert.Empty(t, services[1].Banner)
	assert.Equal(t, map[string]map[string]string{
		"443/tcp": {"ssl-cert": "Subject: commonName=nas.lan"},
	}, scripts)
	assert.Equal(t, ports(53, 443), openPortSet(services))
}

func TestHostAddresses(t *testing.T) {
	ip, mac, vendor := hostAddresses(&nmap.Host{Addresses: []nmap.Address{
		{Addr: "00:50:56:AB:CD:EF", AddrType: "mac", Vendor: "VMware"},
		{Addr: "10.0.0.7", AddrType: "ipv4"},
	}})
	assert.Equal(t, "10.0.0.7", ip)
	assert.Equal(t, "00:50:56:ab:cd:ef", mac)
	assert.Equal(t, "VMware", vendor)
}

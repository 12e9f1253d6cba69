package scanning

import (
	"context"
	"strconv"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netprobe/internal/device"
)

const (
	addrTypeMAC     = "mac"
	stateOpen       = "open"
	stateFiltered   = "filtered"
	scriptBanner    = "banner"
	sshPort         = 22
	snmpPort        = 161
	maxSSHOnlyPorts = 5
)

type hostRecord struct {
	record      device.ProbeRecord
	portsProbed int
	openPorts   int
}

// normalizeHost converts one nmap host. Hosts without an IP address are
// skipped.
func (p *Prober) normalizeHost(ctx context.Context, h *nmap.Host) (hostRecord, bool) {
	ip, mac, macVendor := hostAddresses(h)
	if ip == "" {
		return hostRecord{}, false
	}

	rec := device.ProbeRecord{
		IP:        ip,
		MAC:       mac,
		Method:    device.MethodNmap,
		Timestamp: p.now(),
		Details: map[string]any{
			"status": h.Status.State,
		},
	}

	if len(h.Hostnames) > 0 {
		rec.Hostname = h.Hostnames[0].Name
	}
	if rec.Hostname == "" && p.resolver != nil {
		rec.Hostname = p.resolver.LookupHostname(ctx, ip)
	}

	rec.OSInfo = osInfo(h.OS.Matches)
	if rec.OSInfo != nil {
		rec.Details["os_matches"] = len(rec.OSInfo.Matches)
	}

	services, scripts := serviceList(h.Ports)
	rec.Services = services
	if len(scripts) > 0 {
		rec.Details["scripts"] = scripts
	}

	if len(h.HostScripts) > 0 {
		hostScripts := make(map[string]string, len(h.HostScripts))
		for _, s := range h.HostScripts {
			hostScripts[s.ID] = strings.TrimSpace(s.Output)
		}
		rec.Details["host_scripts"] = hostScripts
	}

	rec.Vendor = macVendor
	if rec.Vendor == "" && mac != "" {
		rec.Vendor = p.catalog.LookupOUI(mac)
	}
	if rec.Vendor == "" && rec.OSInfo != nil {
		rec.Vendor = p.catalog.VendorFromDescription(rec.OSInfo.Name)
	}

	rec.DeviceType = ClassifyDeviceType(openPortSet(services))
	rec.ResponseTime = srttMillis(h.Times.SRTT)

	probed := len(h.Ports)
	for _, ep := range h.ExtraPorts {
		probed += ep.Count
	}
	open := 0
	for _, s := range services {
		if isOpen(s.State) {
			open++
		}
	}

	p.logger.DebugHost("Normalized nmap host", ip,
		"services", len(services),
		"device_type", rec.DeviceType,
		"os", osName(rec.OSInfo))

	return hostRecord{record: rec, portsProbed: probed, openPorts: open}, true
}

func hostAddresses(h *nmap.Host) (ip, mac, vendor string) {
	for _, a := range h.Addresses {
		switch a.AddrType {
		case addrTypeMAC:
			if mac == "" {
				mac = device.NormalizeMAC(a.Addr)
				vendor = a.Vendor
			}
		default:
			if ip == "" {
				ip = a.Addr
			}
		}
	}
	return ip, mac, vendor
}

// osInfo takes the most accurate match as the best guess and keeps the
// rest for reference.
func osInfo(matches []nmap.OSMatch) *device.OSInfo {
	if len(matches) == 0 {
		return nil
	}

	best := 0
	for i := range matches {
		if matches[i].Accuracy > matches[best].Accuracy {
			best = i
		}
	}

	info := &device.OSInfo{
		Name:     matches[best].Name,
		Accuracy: matches[best].Accuracy,
		Matches:  make([]device.OSMatch, 0, len(matches)),
	}
	if len(matches[best].Classes) > 0 {
		c := matches[best].Classes[0]
		info.Family = c.Family
		info.Vendor = c.Vendor
		info.Generation = c.OSGeneration
		info.Type = c.Type
		info.CPE = cpeList(c.CPEs)
	}

	for _, m := range matches {
		om := device.OSMatch{Name: m.Name, Accuracy: m.Accuracy}
		if len(m.Classes) > 0 {
			c := m.Classes[0]
			om.Family = c.Family
			om.Vendor = c.Vendor
			om.Type = c.Type
			om.CPE = cpeList(c.CPEs)
		}
		info.Matches = append(info.Matches, om)
	}
	return info
}

func cpeList(cpes []nmap.CPE) []string {
	if len(cpes) == 0 {
		return nil
	}
	out := make([]string, len(cpes))
	for i, c := range cpes {
		out[i] = string(c)
	}
	return out
}

func osName(info *device.OSInfo) string {
	if info == nil {
		return ""
	}
	return info.Name
}

// serviceList keeps open and filtered ports. Script output is returned
// per port.
func serviceList(ports []nmap.Port) ([]device.Service, map[string]map[string]string) {
	services := make([]device.Service, 0, len(ports))
	scripts := make(map[string]map[string]string)

	for _, port := range ports {
		state := port.State.State
		if !isOpen(state) && !strings.Contains(state, stateFiltered) {
			continue
		}

		svc := device.Service{
			Port:     int(port.ID),
			Protocol: port.Protocol,
			Name:     port.Service.Name,
			Version:  serviceVersion(port.Service),
			State:    state,
		}

		if len(port.Scripts) > 0 {
			byID := make(map[string]string, len(port.Scripts))
			for _, s := range port.Scripts {
				out := strings.TrimSpace(s.Output)
				byID[s.ID] = out
				if s.ID == scriptBanner {
					svc.Banner = out
				}
			}
			scripts[strconv.Itoa(int(port.ID))+"/"+port.Protocol] = byID
		}
		services = append(services, svc)
	}
	return services, scripts
}

// serviceVersion joins product, version and extra info.
func serviceVersion(s nmap.Service) string {
	parts := make([]string, 0, 3)
	for _, v := range []string{s.Product, s.Version, s.ExtraInfo} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func isOpen(state string) bool {
	return strings.HasPrefix(state, stateOpen)
}

func openPortSet(services []device.Service) map[int]struct{} {
	set := make(map[int]struct{}, len(services))
	for _, s := range services {
		if isOpen(s.State) {
			set[s.Port] = struct{}{}
		}
	}
	return set
}

// srttMillis converts nmap's smoothed round trip time, reported in
// microseconds, to milliseconds.
func srttMillis(srtt string) *float64 {
	if srtt == "" {
		return nil
	}
	us, err := strconv.ParseFloat(srtt, 64)
	if err != nil || us < 0 {
		return nil
	}
	ms := us / 1000
	return &ms
}

type typeRule struct {
	deviceType device.Type
	ports      []int
}

var (
	managementPorts = []int{22, 23, 80, 443}

	// Checked in order after the SNMP management rule; the first rule
	// with any open port wins.
	typeRules = []typeRule{
		{device.TypeWebServer, []int{80, 443, 8080, 8443}},
		{device.TypeMailServer, []int{25, 110, 143, 993, 995}},
		{device.TypeDatabaseServer, []int{3306, 5432, 1433, 1521}},
		{device.TypePrinter, []int{515, 631, 9100}},
		{device.TypeWorkstation, []int{135, 139, 445, 3389}},
	}
)

// ClassifyDeviceType guesses a device role from its open ports.
// Infrastructure roles are checked before generic workstation signals.
func ClassifyDeviceType(open map[int]struct{}) device.Type {
	if hasPort(open, snmpPort) && anyPort(open, managementPorts) {
		return device.TypeNetworkDevice
	}
	for _, rule := range typeRules {
		if anyPort(open, rule.ports) {
			return rule.deviceType
		}
	}
	if hasPort(open, sshPort) && len(open) < maxSSHOnlyPorts {
		return device.TypeWorkstation
	}
	return device.TypeUnknown
}

func hasPort(open map[int]struct{}, port int) bool {
	_, ok := open[port]
	return ok
}

func anyPort(open map[int]struct{}, ports []int) bool {
	for _, p := range ports {
		if hasPort(open, p) {
			return true
		}
	}
	return false
}

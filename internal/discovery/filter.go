package discovery

import (
	"strings"

	"github.com/anstrom/netprobe/internal/device"
)

// IsMeaningful reports whether d carries any signal beyond being a
// member of the target range.
func IsMeaningful(d *device.Device) bool {
	switch {
	case device.IsRealMAC(d.MAC):
		return true
	case hasRealHostname(d):
		return true
	case len(d.Services) > 0:
		return true
	case !d.OSInfo.IsEmpty():
		return true
	case !d.SNMP.IsEmpty():
		return true
	}
	return false
}

func hasRealHostname(d *device.Device) bool {
	h := strings.TrimSpace(d.Hostname)
	return h != "" && !strings.EqualFold(h, "unknown") && h != d.IP
}

// FilterMeaningful splits devices into kept and dropped.
func FilterMeaningful(devices []*device.Device) (kept []*device.Device, dropped int) {
	kept = make([]*device.Device, 0, len(devices))
	for _, d := range devices {
		if IsMeaningful(d) {
			kept = append(kept, d)
		} else {
			dropped++
		}
	}
	return kept, dropped
}

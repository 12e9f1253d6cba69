package device

import (
	"fmt"
	"strings"
)

const (
	zeroMAC      = "00:00:00:00:00:00"
	broadcastMAC = "ff:ff:ff:ff:ff:ff"
	macOctets    = 6
)

// NormalizeMAC converts a MAC address to lowercase colon-separated form.
// It accepts colon, dash and dotted (aabb.ccdd.eeff) notations and single
// digit octets as printed by BSD arp. Unparseable input returns "".
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(strings.TrimSpace(mac))
	if mac == "" {
		return ""
	}

	var parts []string
	switch {
	case strings.Contains(mac, ":"):
		parts = strings.Split(mac, ":")
	case strings.Contains(mac, "-"):
		parts = strings.Split(mac, "-")
	case strings.Contains(mac, "."):
		compact := strings.ReplaceAll(mac, ".", "")
		if len(compact) != macOctets*2 {
			return ""
		}
		for i := 0; i < len(compact); i += 2 {
			parts = append(parts, compact[i:i+2])
		}
	default:
		if len(mac) != macOctets*2 {
			return ""
		}
		for i := 0; i < len(mac); i += 2 {
			parts = append(parts, mac[i:i+2])
		}
	}

	if len(parts) != macOctets {
		return ""
	}
	for i, p := range parts {
		if len(p) == 1 {
			p = "0" + p
		}
		if len(p) != 2 || !isHex(p) {
			return ""
		}
		parts[i] = p
	}
	return strings.Join(parts, ":")
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// FormatHardwareAddr renders raw octets as a colon-separated lowercase MAC.
func FormatHardwareAddr(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, len(b))
	for i, octet := range b {
		parts[i] = fmt.Sprintf("%02x", octet)
	}
	return strings.Join(parts, ":")
}

// IsZeroMAC reports whether mac is the all-zero address.
func IsZeroMAC(mac string) bool {
	return NormalizeMAC(mac) == zeroMAC
}

// IsRealMAC reports whether mac identifies an actual interface: parseable,
// not all-zero and not broadcast.
func IsRealMAC(mac string) bool {
	n := NormalizeMAC(mac)
	return n != "" && n != zeroMAC && n != broadcastMAC
}

// OUI returns the first three octets of mac in normalized form.
func OUI(mac string) string {
	n := NormalizeMAC(mac)
	if n == "" {
		return ""
	}
	return n[:8]
}

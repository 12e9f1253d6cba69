// Package netutil holds the address arithmetic used before any probe is
// sent: CIDR validation, exclusion computation, local address detection
// and host enumeration.
package netutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"strings"
)

const ipv4Bits = 32

// ValidateCIDR reports whether s is a well-formed CIDR range.
func ValidateCIDR(s string) bool {
	_, _, err := net.ParseCIDR(strings.TrimSpace(s))
	return err == nil
}

// ParseNetwork parses a CIDR range and returns its masked network.
func ParseNetwork(cidr string) (*net.IPNet, error) {
	_, ipnet, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	return ipnet, nil
}

// NetworkAddress returns the first address of ipnet.
func NetworkAddress(ipnet *net.IPNet) net.IP {
	return ipnet.IP.Mask(ipnet.Mask)
}

// BroadcastAddress returns the last address of ipnet.
func BroadcastAddress(ipnet *net.IPNet) net.IP {
	ip := ipnet.IP.Mask(ipnet.Mask)
	out := make(net.IP, len(ip))
	for i := range ip {
		out[i] = ip[i] | ^ipnet.Mask[i]
	}
	return out
}

// hasBroadcast reports whether ipnet spans more than one address, so that
// its last address is distinct from its network address.
func hasBroadcast(ipnet *net.IPNet) bool {
	ones, bits := ipnet.Mask.Size()
	return ones < bits
}

// ComputeExclusions returns the addresses a run over cidr must skip:
// the explicit excludes, the network address, the broadcast address when
// the range holds more than one address, and every local interface
// address inside cidr. The result is de-duplicated and
// keeps first-seen order.
func ComputeExclusions(cidr string, explicit []string) ([]string, error) {
	return ComputeExclusionsWithLocal(cidr, explicit, LocalAddresses())
}

// ComputeExclusionsWithLocal is ComputeExclusions with a caller-supplied
// list of local addresses.
func ComputeExclusionsWithLocal(cidr string, explicit, local []string) ([]string, error) {
	ipnet, err := ParseNetwork(cidr)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(entry string) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return
		}
		if _, ok := seen[entry]; ok {
			return
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}

	for _, e := range explicit {
		add(e)
	}

	add(NetworkAddress(ipnet).String())
	if hasBroadcast(ipnet) {
		add(BroadcastAddress(ipnet).String())
	}

	for _, addr := range local {
		ip := net.ParseIP(addr)
		if ip != nil && ipnet.Contains(ip) {
			add(ip.String())
		}
	}

	return out, nil
}

// Hosts enumerates the IPv4 host addresses of cidr that are not excluded.
// The network address is never returned, nor the broadcast address of a
// range with more than one address, so a /32 yields no hosts.
// maxHosts bounds the size of the range, 0 disables the bound.
func Hosts(cidr string, excluded *ExclusionSet, maxHosts int) ([]string, error) {
	ipnet, err := ParseNetwork(cidr)
	if err != nil {
		return nil, err
	}

	ones, bits := ipnet.Mask.Size()
	if bits != ipv4Bits {
		return nil, fmt.Errorf("host enumeration supports IPv4 ranges only, got %s", cidr)
	}

	size := uint64(1) << uint(bits-ones)
	if maxHosts > 0 && size > uint64(maxHosts) {
		return nil, fmt.Errorf("range %s has %d addresses, exceeds limit of %d", cidr, size, maxHosts)
	}

	first := binary.BigEndian.Uint32(NetworkAddress(ipnet).To4())
	last := uint64(first) + size - 1
	if hasBroadcast(ipnet) {
		last--
	}

	hosts := make([]string, 0, size)
	for n := uint64(first) + 1; n <= last; n++ {
		ip := make(net.IP, net.IPv4len)
		binary.BigEndian.PutUint32(ip, uint32(n))
		if excluded != nil && excluded.Contains(ip) {
			continue
		}
		hosts = append(hosts, ip.String())
	}
	return hosts, nil
}

// LessIP orders addresses numerically, IPv4 before IPv6.
func LessIP(a, b string) bool {
	x, y := net.ParseIP(a), net.ParseIP(b)
	if x4, y4 := x.To4(), y.To4(); x4 != nil && y4 != nil {
		x, y = x4, y4
	}
	return bytes.Compare(x, y) < 0
}

// SortIPs sorts addresses numerically in place.
func SortIPs(ips []string) {
	sort.Slice(ips, func(i, j int) bool { return LessIP(ips[i], ips[j]) })
}

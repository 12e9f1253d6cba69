package netutil

import (
	"fmt"
	"net"
	"strings"

	"github.com/censys/cidranger"
)

// ExclusionSet answers membership queries against a list of excluded
// addresses and ranges.
type ExclusionSet struct {
	ranger  cidranger.Ranger
	entries []string
}

// NewExclusionSet builds a set from IP addresses and CIDR ranges.
func NewExclusionSet(entries []string) (*ExclusionSet, error) {
	set := &ExclusionSet{ranger: cidranger.NewPCTrieRanger()}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		ipnet, err := toIPNet(entry)
		if err != nil {
			return nil, err
		}
		if err := set.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet)); err != nil {
			return nil, fmt.Errorf("failed to add exclusion %q: %w", entry, err)
		}
		set.entries = append(set.entries, entry)
	}
	return set, nil
}

func toIPNet(entry string) (*net.IPNet, error) {
	if strings.Contains(entry, "/") {
		return ParseNetwork(entry)
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("invalid exclusion %q", entry)
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(ipv4Bits, ipv4Bits)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(8*net.IPv6len, 8*net.IPv6len)}, nil
}

// Contains reports whether ip falls inside any excluded range.
func (s *ExclusionSet) Contains(ip net.IP) bool {
	if s == nil || ip == nil {
		return false
	}
	ok, err := s.ranger.Contains(ip)
	return err == nil && ok
}

// ContainsString is Contains for a textual address; unparseable input is
// never excluded.
func (s *ExclusionSet) ContainsString(ip string) bool {
	return s.Contains(net.ParseIP(ip))
}

// Entries returns the exclusions in insertion order.
func (s *ExclusionSet) Entries() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.entries...)
}

// Len returns the number of exclusions.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

package netutil

import (
	"net"
	"slices"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

const (
	loopbackAddress = "127.0.0.1"
	// Routable address used only to select the outbound interface; no
	// packet is sent over a UDP dial.
	probeAddress = "8.8.8.8:80"
	probeTimeout = 2 * time.Second
)

// AddressLister enumerates local interface addresses in CIDR notation.
type AddressLister func() ([]string, error)

// OutboundProbe returns the local address used for outbound traffic.
type OutboundProbe func() (string, error)

// LocalAddresses returns the non-loopback IPv4 addresses of this host plus
// 127.0.0.1. It never fails; enumeration errors fall back to the outbound
// interface address and finally to loopback alone.
func LocalAddresses() []string {
	return localAddresses(interfaceAddresses, outboundAddress)
}

func localAddresses(list AddressLister, probe OutboundProbe) []string {
	var out []string
	add := func(ip net.IP) {
		v4 := ip.To4()
		if v4 == nil || v4.IsLoopback() {
			return
		}
		s := v4.String()
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}

	if list != nil {
		if addrs, err := list(); err == nil {
			for _, a := range addrs {
				add(parseInterfaceAddr(a))
			}
		}
	}

	if len(out) == 0 && probe != nil {
		if addr, err := probe(); err == nil {
			add(net.ParseIP(addr))
		}
	}

	return append(out, loopbackAddress)
}

func parseInterfaceAddr(addr string) net.IP {
	if strings.Contains(addr, "/") {
		ip, _, err := net.ParseCIDR(addr)
		if err != nil {
			return nil
		}
		return ip
	}
	return net.ParseIP(addr)
}

func interfaceAddresses() ([]string, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, err
	}
	var addrs []string
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
	}
	return addrs, nil
}

func outboundAddress() (string, error) {
	conn, err := net.DialTimeout("udp", probeAddress, probeTimeout)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()
	if udp, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return udp.IP.String(), nil
	}
	return "", net.UnknownNetworkError("udp")
}

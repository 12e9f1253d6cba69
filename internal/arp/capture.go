package arp

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// decodeARPReply extracts the sender of an ARP reply from an Ethernet
// frame. Requests and non-ARP frames are ignored, as are senders outside
// network when network is set.
func decodeARPReply(frame []byte, network *net.IPNet) (Entry, bool) {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	return arpReplyFromPacket(packet, network)
}

func arpReplyFromPacket(packet gopacket.Packet, network *net.IPNet) (Entry, bool) {
	layer := packet.Layer(layers.LayerTypeARP)
	if layer == nil {
		return Entry{}, false
	}
	reply, ok := layer.(*layers.ARP)
	if !ok || reply.Operation != layers.ARPReply {
		return Entry{}, false
	}
	if len(reply.SourceProtAddress) != net.IPv4len || len(reply.SourceHwAddress) == 0 {
		return Entry{}, false
	}

	ip := net.IP(reply.SourceProtAddress)
	if network != nil && !network.Contains(ip) {
		return Entry{}, false
	}
	return Entry{
		IP:  ip.String(),
		MAC: net.HardwareAddr(reply.SourceHwAddress).String(),
	}, true
}

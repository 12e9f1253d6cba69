package arp

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arpFrame(t *testing.T, op uint16, srcIP string, srcMAC net.HardwareAddr) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte(net.ParseIP(srcIP).To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(net.ParseIP("192.168.1.2").To4()),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, arp))
	return buf.Bytes()
}

func TestDecodeARPReply(t *testing.T) {
	mac := net.HardwareAddr{0x00, 0x1b, 0x54, 0x0a, 0x0b, 0x0c}
	_, network, err := net.ParseCIDR("192.168.1.0/24")
	require.NoError(t, err)

	t.Run("reply in range", func(t *testing.T) {
		e, ok := decodeARPReply(arpFrame(t, layers.ARPReply, "192.168.1.40", mac), network)
		require.True(t, ok)
		assert.Equal(t, Entry{IP: "192.168.1.40", MAC: "00:1b:54:0a:0b:0c"}, e)
	})

	t.Run("request ignored", func(t *testing.T) {
		_, ok := decodeARPReply(arpFrame(t, layers.ARPRequest, "192.168.1.40", mac), network)
		assert.False(t, ok)
	})

	t.Run("reply out of range", func(t *testing.T) {
		_, ok := decodeARPReply(arpFrame(t, layers.ARPReply, "10.9.9.9", mac), network)
		assert.False(t, ok)
	})

	t.Run("no network filter", func(t *testing.T) {
		e, ok := decodeARPReply(arpFrame(t, layers.ARPReply, "10.9.9.9", mac), nil)
		require.True(t, ok)
		assert.Equal(t, "10.9.9.9", e.IP)
	})

	t.Run("garbage", func(t *testing.T) {
		_, ok := decodeARPReply([]byte{0x01, 0x02, 0x03}, network)
		assert.False(t, ok)
	})
}

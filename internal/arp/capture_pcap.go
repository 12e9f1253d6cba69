//go:build pcap

package arp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

const (
	captureSnapLen = 1024
	captureTimeout = 500 * time.Millisecond
)

type pcapCapturer struct {
	iface string
}

func newPassiveCapturer(iface string) Capturer {
	return &pcapCapturer{iface: iface}
}

// Capture implements Capturer.
func (c *pcapCapturer) Capture(ctx context.Context, network *net.IPNet, sink func(Entry)) error {
	iface := c.iface
	if iface == "" {
		name, err := captureDeviceFor(network)
		if err != nil {
			return err
		}
		iface = name
	}

	handle, err := pcap.OpenLive(iface, captureSnapLen, true, captureTimeout)
	if err != nil {
		return fmt.Errorf("open %s: %w", iface, err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("arp"); err != nil {
		return fmt.Errorf("set filter on %s: %w", iface, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := source.Packets()
	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-packets:
			if !ok {
				return nil
			}
			if e, ok := arpReplyFromPacket(packet, network); ok {
				e.Interface = iface
				sink(e)
			}
		}
	}
}

// captureDeviceFor picks the first capture device with an address in
// network.
func captureDeviceFor(network *net.IPNet) (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", err
	}
	for _, d := range devs {
		for _, a := range d.Addresses {
			if network != nil && network.Contains(a.IP) {
				return d.Name, nil
			}
		}
	}
	return "", errors.New("no capture device has an address in the target network")
}

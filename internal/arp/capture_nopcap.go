//go:build !pcap

package arp

// Passive capture needs libpcap; builds without the pcap tag have none.
func newPassiveCapturer(string) Capturer {
	return nil
}

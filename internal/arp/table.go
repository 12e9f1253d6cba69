package arp

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

const procNetARP = "/proc/net/arp"

// SystemTable reads the host's ARP table: /proc/net/arp on Linux and
// the arp command elsewhere.
type SystemTable struct {
	goos     string
	procPath string
	command  func(ctx context.Context, args ...string) ([]byte, error)
}

// NewSystemTable returns a reader for the running platform.
func NewSystemTable() *SystemTable {
	return &SystemTable{
		goos:     runtime.GOOS,
		procPath: procNetARP,
		command: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, "arp", args...).Output()
		},
	}
}

// ReadTable implements TableReader.
func (t *SystemTable) ReadTable(ctx context.Context) ([]Entry, error) {
	switch t.goos {
	case "linux":
		f, err := os.Open(t.procPath)
		if err == nil {
			defer f.Close()
			return parseProcNetARP(f)
		}
		// Some containers hide procfs; the arp command may still work.
		out, cmdErr := t.command(ctx, "-an")
		if cmdErr != nil {
			return nil, err
		}
		return parseBSDArp(bytes.NewReader(out))
	case "windows":
		out, err := t.command(ctx, "-a")
		if err != nil {
			return nil, err
		}
		return parseWindowsArp(bytes.NewReader(out))
	default:
		out, err := t.command(ctx, "-an")
		if err != nil {
			return nil, err
		}
		return parseBSDArp(bytes.NewReader(out))
	}
}

// parseProcNetARP parses the Linux pseudo-file:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func parseProcNetARP(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	header := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if header {
			header = false
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		e := Entry{IP: fields[0], MAC: fields[3]}
		if len(fields) >= 6 {
			e.Interface = fields[5]
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// ? (192.168.2.1) at 18:aa:0f:f7:9e:62 on en0 ifscope [ethernet]
var bsdLine = regexp.MustCompile(`\((\d+\.\d+\.\d+\.\d+)\)\s+at\s+([0-9a-fA-F]{1,2}(?::[0-9a-fA-F]{1,2}){5})(?:\s+\[\w+\])?(?:\s+on\s+(\S+))?`)

// parseBSDArp parses `arp -an` output from darwin, the BSDs and Linux
// net-tools. Incomplete entries do not match.
func parseBSDArp(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := bsdLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		entries = append(entries, Entry{IP: m[1], MAC: m[2], Interface: m[3]})
	}
	return entries, sc.Err()
}

var (
	windowsInterface = regexp.MustCompile(`^Interface:\s+(\d+\.\d+\.\d+\.\d+)`)
	windowsLine      = regexp.MustCompile(`^\s*(\d+\.\d+\.\d+\.\d+)\s+([0-9a-fA-F]{2}(?:-[0-9a-fA-F]{2}){5})\s+\w+`)
)

// parseWindowsArp parses `arp -a` output, where rows are grouped under
// an "Interface:" heading naming the local address.
func parseWindowsArp(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		iface   string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if m := windowsInterface.FindStringSubmatch(line); m != nil {
			iface = m[1]
			continue
		}
		if m := windowsLine.FindStringSubmatch(line); m != nil {
			entries = append(entries, Entry{IP: m[1], MAC: m[2], Interface: iface})
		}
	}
	return entries, sc.Err()
}

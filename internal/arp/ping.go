package arp

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// SystemPinger runs the platform ping command.
type SystemPinger struct {
	// Binary overrides the ping executable.
	Binary string
}

// Ping implements Pinger. A non-zero exit status is returned as an error.
func (s SystemPinger) Ping(ctx context.Context, ip string, count int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(count)*timeout+time.Second)
	defer cancel()

	bin := s.Binary
	if bin == "" {
		bin = "ping"
	}
	cmd := exec.CommandContext(ctx, bin, pingArgs(runtime.GOOS, ip, count, timeout)...)
	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// pingArgs builds the ping arguments for goos. Linux takes the wait in
// seconds, darwin and windows take milliseconds.
func pingArgs(goos, ip string, count int, timeout time.Duration) []string {
	if count < 1 {
		count = 1
	}
	n := strconv.Itoa(count)
	millis := strconv.FormatInt(timeout.Milliseconds(), 10)

	switch goos {
	case "windows":
		return []string{"-n", n, "-w", millis, ip}
	case "darwin", "freebsd", "openbsd", "netbsd":
		return []string{"-c", n, "-W", millis, ip}
	default:
		secs := int(timeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return []string{"-c", n, "-W", strconv.Itoa(secs), ip}
	}
}

// Command netprobe discovers the devices on a network.
package main

import "github.com/anstrom/netprobe/cmd/cli"

// Build information, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/logging"
)

var (
	discoverExclude []string
	discoverOutput  string
	discoverFormat  string
	discoverNoARP   bool
	discoverNoNmap  bool
	discoverNoSNMP  bool
	discoverSave    bool
	discoverTimeout time.Duration
	discoverXML     string
	discoverPorts   string
)

// discoverCmd represents the discover command.
var discoverCmd = &cobra.Command{
	Use:   "discover [network]",
	Short: "Discover the devices on a network",
	Long: `Discover the devices on an IPv4 network. The phases run in a fixed order:
ARP neighbor discovery, an nmap port/service scan, then SNMP polling of
every host found so far. Results are merged by IP address and devices
that carry no information beyond their address are dropped.

The network argument is in CIDR notation (e.g., 192.168.1.0/24). When it
is omitted, discovery.network from the config file is used.`,
	Example: `  netprobe discover 192.168.1.0/24
  netprobe discover 10.0.0.0/24 --exclude 10.0.0.1 --exclude 10.0.0.128/25
  netprobe discover 192.168.1.0/24 --no-nmap --format table
  netprobe discover 192.168.1.0/24 --nmap-xml saved.xml --out result.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringSliceVarP(&discoverExclude, "exclude", "e", nil, "Addresses or CIDR ranges to skip (repeatable)")
	discoverCmd.Flags().StringVarP(&discoverOutput, "out", "o", "", "Write the result to a file instead of stdout")
	discoverCmd.Flags().StringVarP(&discoverFormat, "format", "f", formatJSON, "Output format: json or table")
	discoverCmd.Flags().BoolVar(&discoverNoARP, "no-arp", false, "Skip the ARP phase")
	discoverCmd.Flags().BoolVar(&discoverNoNmap, "no-nmap", false, "Skip the nmap phase")
	discoverCmd.Flags().BoolVar(&discoverNoSNMP, "no-snmp", false, "Skip the SNMP phase")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Store the result in the configured database")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "Bound the whole run (e.g. 10m)")
	discoverCmd.Flags().StringVar(&discoverXML, "nmap-xml", "", "Replay a saved nmap XML report instead of running nmap")
	discoverCmd.Flags().StringVar(&discoverPorts, "ports", "", "TCP ports for the nmap phase (e.g. 22,80,443,8000-8100)")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	if err := validateFormat(discoverFormat); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDiscoverFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	spec, err := targetSpec(cfg, args, discoverExclude)
	if err != nil {
		return err
	}

	r, err := newRunner(cfg, logging.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := r.run(ctx, spec)
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), discoverOutput, discoverFormat, result)
}

// applyDiscoverFlags lets explicitly set flags override the config file.
func applyDiscoverFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if v, err := flags.GetBool("no-arp"); err == nil && flags.Changed("no-arp") {
		cfg.ARP.Enabled = !v
	}
	if v, err := flags.GetBool("no-nmap"); err == nil && flags.Changed("no-nmap") {
		cfg.Nmap.Enabled = !v
	}
	if v, err := flags.GetBool("no-snmp"); err == nil && flags.Changed("no-snmp") {
		cfg.SNMP.Enabled = !v
	}
	if v, err := flags.GetBool("save"); err == nil && flags.Changed("save") {
		cfg.Database.Enabled = v
	}
	if v, err := flags.GetDuration("timeout"); err == nil && flags.Changed("timeout") {
		cfg.Discovery.Timeout = v
	}
	if v, err := flags.GetString("nmap-xml"); err == nil && flags.Changed("nmap-xml") {
		cfg.Nmap.XMLInput = v
	}
	if v, err := flags.GetString("ports"); err == nil && flags.Changed("ports") {
		cfg.Nmap.TCPPorts = v
	}
}

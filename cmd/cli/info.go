package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/discovery"
	"github.com/anstrom/netprobe/internal/logging"
)

var infoFormat string

// infoCmd represents the info command.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the discovery phases and their settings",
	Long: `Show every discovery phase in run order with its tooling, whether it is
enabled and the effective settings. SNMP communities are masked when
snmp.mask_community is set.`,
	Example: `  netprobe info
  netprobe info --format json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoFormat, "format", "f", formatTable, "Output format: json or table")
}

func runInfo(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(infoFormat); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, logging.Default())
	if err != nil {
		return err
	}
	return renderInfo(cmd.OutOrStdout(), infoFormat, r.engine.Info())
}

func renderInfo(w io.Writer, format string, infos []discovery.ScannerInfo) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Phase", "Name", "Enabled", "Tooling", "Version", "Settings")
	for _, info := range infos {
		enabled := "no"
		if info.Enabled {
			enabled = "yes"
		}
		if err := table.Append([]string{
			string(info.Method),
			info.Name,
			enabled,
			info.Tooling,
			info.Version,
			formatSettings(info.Config),
		}); err != nil {
			return fmt.Errorf("failed to render info table: %w", err)
		}
	}
	return table.Render()
}

// formatSettings renders a settings map as sorted key=value lines.
func formatSettings(settings map[string]any) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s=%v", k, settings[k])
	}
	return strings.Join(lines, "\n")
}

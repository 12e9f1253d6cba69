package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/netprobe/internal/device"
	"github.com/anstrom/netprobe/internal/discovery"
)

const (
	formatJSON  = "json"
	formatTable = "table"

	outputDirPerm  = 0755
	outputFilePerm = 0644

	maxServicesDisplay = 4
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatTable:
		return nil
	}
	return fmt.Errorf("invalid output format %q: use json or table", format)
}

// writeResult renders result to path, or to stdout when path is empty.
func writeResult(stdout io.Writer, path, format string, result *discovery.Result) error {
	if path == "" {
		return renderResult(stdout, format, result)
	}

	if err := os.MkdirAll(filepath.Dir(path), outputDirPerm); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePerm)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := renderResult(f, format, result); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func renderResult(w io.Writer, format string, result *discovery.Result) error {
	if format == formatTable {
		return renderDeviceTable(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// renderDeviceTable prints one row per device followed by a run summary.
func renderDeviceTable(w io.Writer, result *discovery.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("IP", "MAC", "Hostname", "Vendor", "Type", "OS", "Services", "Methods")

	for _, d := range result.Devices {
		if err := table.Append([]string{
			d.IP,
			d.MAC,
			d.Hostname,
			d.Vendor,
			string(d.DeviceType),
			d.OSInfo.Name,
			formatServices(d.Services),
			formatMethods(d.DiscoveryMethods),
		}); err != nil {
			return fmt.Errorf("failed to render device table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render device table: %w", err)
	}

	meta := result.Metadata
	fmt.Fprintf(w, "\n%d devices on %s in %.1fs (scan %s)\n",
		meta.TotalDevices, meta.Target, meta.DurationSeconds, meta.ScanID)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s [%s]: %s\n", e.Kind, e.Code, e.Message)
	}
	return nil
}

func formatServices(services []device.Service) string {
	parts := make([]string, 0, maxServicesDisplay+1)
	for i, s := range services {
		if i == maxServicesDisplay {
			parts = append(parts, fmt.Sprintf("+%d", len(services)-maxServicesDisplay))
			break
		}
		label := strconv.Itoa(s.Port) + "/" + s.Protocol
		if s.Name != "" {
			label += " " + s.Name
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ", ")
}

func formatMethods(methods []device.Method) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ",")
}

package scanning

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Port validation constants.
	expectedPortRangeParts = 2
	maxPort                = 65535

	scanTypeSYN     = "syn"
	scanTypeConnect = "connect"

	defaultTCPPorts = "21,22,23,25,53,80,110,135,139,143,161,443,445,515,631," +
		"993,995,1433,1521,3306,3389,5432,8080,8443,9100"
	defaultUDPPorts         = "161"
	defaultTiming           = 4
	defaultVersionIntensity = 5
	defaultHostTimeout      = 5 * time.Minute
	defaultScanTimeout      = 30 * time.Minute
)

// Config holds the port/service phase settings.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// BinaryPath overrides the nmap executable looked up in PATH.
	BinaryPath string `yaml:"binary_path" json:"binary_path"`
	// TCPPorts and UDPPorts select the scan types: TCP ports enable the
	// TCP scan named by ScanType, UDP ports enable a UDP scan.
	TCPPorts string `yaml:"tcp_ports" json:"tcp_ports"`
	UDPPorts string `yaml:"udp_ports" json:"udp_ports"`
	// ScanType is "syn" (needs privileges) or "connect".
	ScanType string `yaml:"scan_type" json:"scan_type" validate:"omitempty,oneof=syn connect"`
	// Timing is the nmap timing template, 0 (paranoid) to 5 (insane).
	Timing           int  `yaml:"timing" json:"timing" validate:"min=0,max=5"`
	ServiceDetection bool `yaml:"service_detection" json:"service_detection"`
	VersionIntensity int  `yaml:"version_intensity" json:"version_intensity" validate:"min=0,max=9"`
	OSDetection      bool `yaml:"os_detection" json:"os_detection"`
	// OSScanGuess makes OS detection report near matches.
	OSScanGuess bool     `yaml:"os_scan_guess" json:"os_scan_guess"`
	Scripts     []string `yaml:"scripts" json:"scripts"`
	// SkipHostDiscovery treats every target as up.
	SkipHostDiscovery bool          `yaml:"skip_host_discovery" json:"skip_host_discovery"`
	HostTimeout       time.Duration `yaml:"host_timeout" json:"host_timeout"`
	// ScanTimeout bounds the whole invocation.
	ScanTimeout time.Duration `yaml:"scan_timeout" json:"scan_timeout"`
	// XMLInput replays a saved nmap XML report instead of running nmap.
	XMLInput string `yaml:"xml_input" json:"xml_input"`
}

// DefaultConfig returns the default port/service settings.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		TCPPorts:         defaultTCPPorts,
		UDPPorts:         defaultUDPPorts,
		ScanType:         scanTypeConnect,
		Timing:           defaultTiming,
		ServiceDetection: true,
		VersionIntensity: defaultVersionIntensity,
		OSDetection:      true,
		Scripts:          []string{"default"},
		HostTimeout:      defaultHostTimeout,
		ScanTimeout:      defaultScanTimeout,
	}
}

// Validate checks the settings that struct tags cannot express.
func (c *Config) Validate() error {
	if !c.Enabled || c.XMLInput != "" {
		return nil
	}
	if strings.TrimSpace(c.TCPPorts) == "" && strings.TrimSpace(c.UDPPorts) == "" {
		return fmt.Errorf("no ports specified")
	}
	switch c.ScanType {
	case "", scanTypeSYN, scanTypeConnect:
	default:
		return fmt.Errorf("invalid scan type: %s", c.ScanType)
	}
	if err := ValidatePorts(c.TCPPorts); err != nil {
		return fmt.Errorf("tcp_ports: %w", err)
	}
	if err := ValidatePorts(c.UDPPorts); err != nil {
		return fmt.Errorf("udp_ports: %w", err)
	}
	return nil
}

// ValidatePorts checks a comma separated port list such as "22,80-90".
// An empty list is valid.
func ValidatePorts(ports string) error {
	if strings.TrimSpace(ports) == "" {
		return nil
	}
	for _, part := range strings.Split(ports, ",") {
		if err := validatePortPart(part); err != nil {
			return err
		}
	}
	return nil
}

func validatePortPart(part string) error {
	part = strings.TrimSpace(part)
	if strings.Contains(part, "-") && !strings.HasPrefix(part, "-") {
		return validatePortRange(part)
	}
	_, err := parsePort(part)
	return err
}

func validatePortRange(part string) error {
	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != expectedPortRangeParts {
		return fmt.Errorf("invalid port range format: %s", part)
	}
	start, err := parsePort(rangeParts[0])
	if err != nil {
		return err
	}
	end, err := parsePort(rangeParts[1])
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("invalid port range %s: start port must be less than end port", part)
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port: %s", s)
	}
	if port < 0 || port > maxPort {
		return 0, fmt.Errorf("invalid port: %d (must be 0-%d)", port, maxPort)
	}
	return port, nil
}

// Stats is the port/service block of the result statistics.
type Stats struct {
	HostsTargeted   int      `json:"hosts_targeted"`
	HostsUp         int      `json:"hosts_up"`
	PortsProbed     int      `json:"ports_probed"`
	OpenPorts       int      `json:"open_ports"`
	HostsWithOS     int      `json:"hosts_with_os"`
	DurationSeconds float64  `json:"duration_seconds"`
	NmapVersion     string   `json:"nmap_version,omitempty"`
	CommandLine     string   `json:"command_line,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Replayed        bool     `json:"replayed,omitempty"`
}

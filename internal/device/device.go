// Package device defines the records exchanged between the discovery
// probers and the orchestrator, and the consolidated per-host Device.
package device

import (
	"time"
)

// Method identifies the technique that reported a host.
type Method string

const (
	MethodARP  Method = "arp"
	MethodNmap Method = "nmap"
	MethodSNMP Method = "snmp"
)

// Type is the best-effort role classification of a device.
type Type string

const (
	TypeUnknown        Type = "unknown"
	TypeNetworkDevice  Type = "network_device"
	TypeWebServer      Type = "web_server"
	TypeMailServer     Type = "mail_server"
	TypeDatabaseServer Type = "database_server"
	TypePrinter        Type = "printer"
	TypeWorkstation    Type = "workstation"
)

// Service is one open or filtered port on a host.
type Service struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Name     string `json:"service"`
	Version  string `json:"version,omitempty"`
	State    string `json:"state"`
	Banner   string `json:"banner,omitempty"`
}

// OSMatch is a single operating system guess reported by the scan engine.
type OSMatch struct {
	Name     string   `json:"name"`
	Accuracy int      `json:"accuracy"`
	Family   string   `json:"family,omitempty"`
	Vendor   string   `json:"vendor,omitempty"`
	Type     string   `json:"type,omitempty"`
	CPE      []string `json:"cpe,omitempty"`
}

// OSInfo holds the best operating system match for a device.
type OSInfo struct {
	Name       string    `json:"name,omitempty"`
	Accuracy   int       `json:"accuracy,omitempty"`
	Family     string    `json:"family,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	Generation string    `json:"generation,omitempty"`
	Type       string    `json:"type,omitempty"`
	CPE        []string  `json:"cpe,omitempty"`
	Matches    []OSMatch `json:"matches,omitempty"`
}

// IsEmpty reports whether no OS attribute is populated.
func (o *OSInfo) IsEmpty() bool {
	if o == nil {
		return true
	}
	return o.Name == "" && o.Family == "" && o.Vendor == "" && o.Generation == "" &&
		o.Type == "" && len(o.CPE) == 0 && len(o.Matches) == 0
}

// Interface is one row of the SNMP interface table.
type Interface struct {
	Index       int    `json:"index"`
	Description string `json:"description,omitempty"`
	Type        int64  `json:"type,omitempty"`
	MTU         int64  `json:"mtu,omitempty"`
	Speed       uint64 `json:"speed,omitempty"`
	PhysAddress string `json:"phys_address,omitempty"`
	AdminStatus int64  `json:"admin_status,omitempty"`
	OperStatus  int64  `json:"oper_status,omitempty"`
	InOctets    uint64 `json:"in_octets,omitempty"`
	OutOctets   uint64 `json:"out_octets,omitempty"`
	InErrors    uint64 `json:"in_errors,omitempty"`
	OutErrors   uint64 `json:"out_errors,omitempty"`
}

// Performance holds the SNMP-derived load metrics.
type Performance struct {
	CPUUtilization    *float64         `json:"cpu_utilization,omitempty"`
	CPUOID            string           `json:"cpu_oid,omitempty"`
	MemoryUsedPercent *float64         `json:"memory_used_percent,omitempty"`
	MemoryFreePercent *float64         `json:"memory_free_percent,omitempty"`
	Memory            map[string]int64 `json:"memory,omitempty"`
}

// IsEmpty reports whether no metric was collected.
func (p *Performance) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.CPUUtilization == nil && p.MemoryUsedPercent == nil &&
		p.MemoryFreePercent == nil && len(p.Memory) == 0
}

// SNMPData is the payload collected from an SNMP responder.
type SNMPData struct {
	Version       string                       `json:"version,omitempty"`
	Community     string                       `json:"community,omitempty"`
	System        map[string]string            `json:"system,omitempty"`
	Interfaces    []Interface                  `json:"interfaces,omitempty"`
	Performance   *Performance                 `json:"performance,omitempty"`
	VendorData    map[string]map[string]string `json:"vendor_specific,omitempty"`
	OIDsCollected int                          `json:"oids_collected"`
}

// IsEmpty reports whether the payload carries no collected values.
// Version and community alone are not values.
func (s *SNMPData) IsEmpty() bool {
	if s == nil {
		return true
	}
	for _, v := range s.System {
		if v != "" {
			return false
		}
	}
	if len(s.Interfaces) > 0 || !s.Performance.IsEmpty() {
		return false
	}
	for _, m := range s.VendorData {
		if len(m) > 0 {
			return false
		}
	}
	return true
}

// ProbeRecord is what a single prober reports about a single host.
type ProbeRecord struct {
	IP           string
	MAC          string
	Hostname     string
	Vendor       string
	DeviceType   Type
	Method       Method
	ResponseTime *float64
	OSInfo       *OSInfo
	Services     []Service
	SNMP         *SNMPData
	Details      map[string]any
	Timestamp    time.Time
}

// Device is the consolidated record for one IP address.
type Device struct {
	IP               string                    `json:"ip"`
	MAC              string                    `json:"mac,omitempty"`
	Hostname         string                    `json:"hostname,omitempty"`
	DeviceType       Type                      `json:"device_type"`
	Vendor           string                    `json:"vendor,omitempty"`
	DiscoveryMethods []Method                  `json:"discovery_methods"`
	ResponseTime     *float64                  `json:"response_time_ms"`
	OSInfo           OSInfo                    `json:"os_info"`
	Services         []Service                 `json:"services"`
	SNMP             *SNMPData                 `json:"snmp_data,omitempty"`
	DiscoveryDetails map[Method]map[string]any `json:"discovery_details"`
	FirstSeen        time.Time                 `json:"first_seen"`
	LastSeen         time.Time                 `json:"last_seen"`
}

// New creates a Device from the first record reported for its IP.
func New(rec ProbeRecord) *Device {
	d := &Device{
		IP:               rec.IP,
		MAC:              rec.MAC,
		Hostname:         rec.Hostname,
		Vendor:           rec.Vendor,
		DeviceType:       rec.DeviceType,
		ResponseTime:     rec.ResponseTime,
		Services:         append([]Service(nil), rec.Services...),
		SNMP:             rec.SNMP,
		DiscoveryDetails: make(map[Method]map[string]any),
		FirstSeen:        rec.Timestamp,
		LastSeen:         rec.Timestamp,
	}
	if d.DeviceType == "" {
		d.DeviceType = TypeUnknown
	}
	if rec.OSInfo != nil {
		d.OSInfo = *rec.OSInfo
	}
	d.AddMethod(rec.Method)
	d.MergeDetails(rec.Method, rec.Details)
	return d
}

// HasMethod reports whether m already found this device.
func (d *Device) HasMethod(m Method) bool {
	for _, existing := range d.DiscoveryMethods {
		if existing == m {
			return true
		}
	}
	return false
}

// AddMethod records m in the discovery method set.
func (d *Device) AddMethod(m Method) {
	if m == "" || d.HasMethod(m) {
		return
	}
	d.DiscoveryMethods = append(d.DiscoveryMethods, m)
}

// MergeDetails folds per-method metadata into the discovery details map.
func (d *Device) MergeDetails(m Method, details map[string]any) {
	if len(details) == 0 {
		return
	}
	if d.DiscoveryDetails == nil {
		d.DiscoveryDetails = make(map[Method]map[string]any)
	}
	target, ok := d.DiscoveryDetails[m]
	if !ok {
		target = make(map[string]any, len(details))
		d.DiscoveryDetails[m] = target
	}
	for k, v := range details {
		target[k] = v
	}
}

// HasService reports whether a service with the given name is listed.
func (d *Device) HasService(name string) bool {
	for _, s := range d.Services {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Touch moves LastSeen forward.
func (d *Device) Touch(t time.Time) {
	if t.After(d.LastSeen) {
		d.LastSeen = t
	}
}

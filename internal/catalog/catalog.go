// Package catalog holds the lookup tables the probers consult: MAC OUI
// prefixes, enterprise OID prefixes, vendor keyword rules and the SNMP
// object identifiers to collect. A Catalog never changes after it is
// built, so one instance can be shared by concurrent probers.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/netprobe/internal/device"
)

// NamedOID is an object identifier with a display name.
type NamedOID struct {
	Name string `yaml:"name" json:"name"`
	OID  string `yaml:"oid" json:"oid"`
}

// KeywordRule maps a lower-case substring to a vendor name.
type KeywordRule struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	Vendor  string `yaml:"vendor" json:"vendor"`
}

type prefixEntry struct {
	prefix string
	vendor string
}

// Catalog is an immutable set of lookup tables.
type Catalog struct {
	oui            map[string]string
	enterprise     []prefixEntry
	keywords       []KeywordRule
	networkVendors map[string]struct{}
	vendorOIDs     map[string][]NamedOID
	systemOIDs     []NamedOID
	interfaceCount string
	interfaceCols  []NamedOID
	cpuOIDs        []string
	memoryOIDs     []string
}

// File is the on-disk form of catalog additions.
type File struct {
	OUI                 map[string]string     `yaml:"oui"`
	EnterpriseOIDs      map[string]string     `yaml:"enterprise_oids"`
	DescriptionKeywords []KeywordRule         `yaml:"description_keywords"`
	NetworkVendors      []string              `yaml:"network_vendors"`
	VendorOIDs          map[string][]NamedOID `yaml:"vendor_oids"`
	CPUOIDs             []string              `yaml:"cpu_oids"`
	MemoryOIDs          []string              `yaml:"memory_oids"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		oui:            make(map[string]string, len(defaultOUI)),
		keywords:       append([]KeywordRule(nil), defaultKeywords...),
		networkVendors: make(map[string]struct{}),
		vendorOIDs:     make(map[string][]NamedOID, len(defaultVendorOIDs)),
		systemOIDs:     append([]NamedOID(nil), SystemOIDs...),
		interfaceCount: OIDInterfaceCount,
		interfaceCols:  append([]NamedOID(nil), InterfaceColumns...),
		cpuOIDs:        append([]string(nil), defaultCPUOIDs...),
		memoryOIDs:     append([]string(nil), defaultMemoryOIDs...),
	}
	for k, v := range defaultOUI {
		c.oui[k] = v
	}
	for k, v := range defaultVendorOIDs {
		c.vendorOIDs[k] = append([]NamedOID(nil), v...)
	}
	for _, v := range defaultNetworkVendors {
		c.networkVendors[strings.ToLower(v)] = struct{}{}
	}
	c.setEnterprise(defaultEnterpriseOIDs)
	return c
}

// Load returns the default catalog merged with the additions in path.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return c.Merge(f)
}

// Merge returns a new catalog with f applied on top of c. Keyword rules
// from f take precedence over existing ones; list-valued OID sets replace
// the existing list when non-empty.
func (c *Catalog) Merge(f File) (*Catalog, error) {
	out := c.clone()

	for prefix, vendor := range f.OUI {
		key := normalizeOUIPrefix(prefix)
		if key == "" {
			return nil, fmt.Errorf("invalid OUI prefix %q", prefix)
		}
		out.oui[key] = vendor
	}

	if len(f.EnterpriseOIDs) > 0 {
		merged := make(map[string]string, len(out.enterprise)+len(f.EnterpriseOIDs))
		for _, e := range out.enterprise {
			merged[e.prefix] = e.vendor
		}
		for prefix, vendor := range f.EnterpriseOIDs {
			merged[trimOID(prefix)] = vendor
		}
		out.setEnterprise(merged)
	}

	if len(f.DescriptionKeywords) > 0 {
		rules := make([]KeywordRule, 0, len(f.DescriptionKeywords)+len(out.keywords))
		for _, r := range f.DescriptionKeywords {
			rules = append(rules, KeywordRule{Keyword: strings.ToLower(r.Keyword), Vendor: r.Vendor})
		}
		out.keywords = append(rules, out.keywords...)
	}

	for _, v := range f.NetworkVendors {
		out.networkVendors[strings.ToLower(v)] = struct{}{}
	}
	for vendor, oids := range f.VendorOIDs {
		out.vendorOIDs[strings.ToLower(vendor)] = append([]NamedOID(nil), oids...)
	}
	if len(f.CPUOIDs) > 0 {
		out.cpuOIDs = append([]string(nil), f.CPUOIDs...)
	}
	if len(f.MemoryOIDs) > 0 {
		out.memoryOIDs = append([]string(nil), f.MemoryOIDs...)
	}

	return out, nil
}

func (c *Catalog) clone() *Catalog {
	out := &Catalog{
		oui:            make(map[string]string, len(c.oui)),
		enterprise:     append([]prefixEntry(nil), c.enterprise...),
		keywords:       append([]KeywordRule(nil), c.keywords...),
		networkVendors: make(map[string]struct{}, len(c.networkVendors)),
		vendorOIDs:     make(map[string][]NamedOID, len(c.vendorOIDs)),
		systemOIDs:     append([]NamedOID(nil), c.systemOIDs...),
		interfaceCount: c.interfaceCount,
		interfaceCols:  append([]NamedOID(nil), c.interfaceCols...),
		cpuOIDs:        append([]string(nil), c.cpuOIDs...),
		memoryOIDs:     append([]string(nil), c.memoryOIDs...),
	}
	for k, v := range c.oui {
		out.oui[k] = v
	}
	for k := range c.networkVendors {
		out.networkVendors[k] = struct{}{}
	}
	for k, v := range c.vendorOIDs {
		out.vendorOIDs[k] = append([]NamedOID(nil), v...)
	}
	return out
}

// setEnterprise stores prefixes longest first so that the first match is
// the most specific one.
func (c *Catalog) setEnterprise(m map[string]string) {
	c.enterprise = c.enterprise[:0]
	for prefix, vendor := range m {
		c.enterprise = append(c.enterprise, prefixEntry{prefix: trimOID(prefix), vendor: vendor})
	}
	sort.Slice(c.enterprise, func(i, j int) bool {
		if len(c.enterprise[i].prefix) != len(c.enterprise[j].prefix) {
			return len(c.enterprise[i].prefix) > len(c.enterprise[j].prefix)
		}
		return c.enterprise[i].prefix < c.enterprise[j].prefix
	})
}

func trimOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

func normalizeOUIPrefix(prefix string) string {
	n := device.NormalizeMAC(prefix + ":00:00:00")
	if n == "" {
		return ""
	}
	return n[:8]
}

// LookupOUI returns the vendor registered for the first three octets of
// mac, or "".
func (c *Catalog) LookupOUI(mac string) string {
	return c.oui[device.OUI(mac)]
}

// VendorFromDescription matches the first keyword rule against the
// lower-cased description.
func (c *Catalog) VendorFromDescription(desc string) string {
	lower := strings.ToLower(desc)
	if lower == "" {
		return ""
	}
	for _, rule := range c.keywords {
		if rule.Keyword != "" && strings.Contains(lower, rule.Keyword) {
			return rule.Vendor
		}
	}
	return ""
}

// VendorFromObjectID returns the vendor of the longest enterprise prefix
// that oid falls under. Prefixes only match on whole arcs.
func (c *Catalog) VendorFromObjectID(oid string) string {
	oid = trimOID(oid)
	if oid == "" {
		return ""
	}
	for _, e := range c.enterprise {
		if oid == e.prefix || strings.HasPrefix(oid, e.prefix+".") {
			return e.vendor
		}
	}
	return ""
}

// IsNetworkVendor reports whether vendor builds network infrastructure.
func (c *Catalog) IsNetworkVendor(vendor string) bool {
	_, ok := c.networkVendors[strings.ToLower(vendor)]
	return ok
}

// VendorOIDs returns the vendor-specific OIDs for vendor, or nil when the
// vendor has no catalog.
func (c *Catalog) VendorOIDs(vendor string) []NamedOID {
	return append([]NamedOID(nil), c.vendorOIDs[strings.ToLower(vendor)]...)
}

// VendorCatalogs returns the names of the vendors with an OID catalog.
func (c *Catalog) VendorCatalogs() []string {
	names := make([]string, 0, len(c.vendorOIDs))
	for k := range c.vendorOIDs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SystemOIDs returns the system group objects to collect.
func (c *Catalog) SystemOIDs() []NamedOID {
	return append([]NamedOID(nil), c.systemOIDs...)
}

// InterfaceCountOID returns the ifNumber object.
func (c *Catalog) InterfaceCountOID() string {
	return c.interfaceCount
}

// InterfaceColumns returns the ifTable columns fetched per index.
func (c *Catalog) InterfaceColumns() []NamedOID {
	return append([]NamedOID(nil), c.interfaceCols...)
}

// CPUOIDs returns candidate CPU utilization objects in probe order.
func (c *Catalog) CPUOIDs() []string {
	return append([]string(nil), c.cpuOIDs...)
}

// MemoryOIDs returns candidate memory objects in probe order.
func (c *Catalog) MemoryOIDs() []string {
	return append([]string(nil), c.memoryOIDs...)
}

// Summary reports table sizes for display.
func (c *Catalog) Summary() map[string]int {
	return map[string]int{
		"oui_prefixes":        len(c.oui),
		"enterprise_prefixes": len(c.enterprise),
		"keyword_rules":       len(c.keywords),
		"vendor_catalogs":     len(c.vendorOIDs),
	}
}

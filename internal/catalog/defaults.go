package catalog

// Standard MIB-II objects.
const (
	OIDSysDescr        = "1.3.6.1.2.1.1.1.0"
	OIDSysObjectID     = "1.3.6.1.2.1.1.2.0"
	OIDSysUpTime       = "1.3.6.1.2.1.1.3.0"
	OIDSysContact      = "1.3.6.1.2.1.1.4.0"
	OIDSysName         = "1.3.6.1.2.1.1.5.0"
	OIDSysLocation     = "1.3.6.1.2.1.1.6.0"
	OIDSysServices     = "1.3.6.1.2.1.1.7.0"
	OIDInterfaceCount  = "1.3.6.1.2.1.2.1.0"
	oidIfEntry         = "1.3.6.1.2.1.2.2.1"
	oidCiscoMemoryPool = "1.3.6.1.4.1.9.9.48.1.1.1"
	oidCiscoCPU        = "1.3.6.1.4.1.9.9.109.1.1.1.1"
	oidJuniperBox      = "1.3.6.1.4.1.2636.3.1"
)

// SystemOIDs are the system group objects collected from every responder.
var SystemOIDs = []NamedOID{
	{Name: "sysDescr", OID: OIDSysDescr},
	{Name: "sysObjectID", OID: OIDSysObjectID},
	{Name: "sysUpTime", OID: OIDSysUpTime},
	{Name: "sysContact", OID: OIDSysContact},
	{Name: "sysName", OID: OIDSysName},
	{Name: "sysLocation", OID: OIDSysLocation},
	{Name: "sysServices", OID: OIDSysServices},
}

// InterfaceColumns are the ifTable columns; the interface index is
// appended to each to form the instance OID.
var InterfaceColumns = []NamedOID{
	{Name: "ifDescr", OID: oidIfEntry + ".2"},
	{Name: "ifType", OID: oidIfEntry + ".3"},
	{Name: "ifMtu", OID: oidIfEntry + ".4"},
	{Name: "ifSpeed", OID: oidIfEntry + ".5"},
	{Name: "ifPhysAddress", OID: oidIfEntry + ".6"},
	{Name: "ifAdminStatus", OID: oidIfEntry + ".7"},
	{Name: "ifOperStatus", OID: oidIfEntry + ".8"},
	{Name: "ifInOctets", OID: oidIfEntry + ".10"},
	{Name: "ifInErrors", OID: oidIfEntry + ".14"},
	{Name: "ifOutOctets", OID: oidIfEntry + ".16"},
	{Name: "ifOutErrors", OID: oidIfEntry + ".20"},
}

var defaultCPUOIDs = []string{
	oidCiscoCPU + ".8.1",              // cpmCPUTotal5minRev
	"1.3.6.1.2.1.25.3.3.1.2.1",        // hrProcessorLoad.1
	oidJuniperBox + ".13.1.8.9.1.0.0", // jnxOperatingCPU routing engine
}

// Listed as a used/free pair.
var defaultMemoryOIDs = []string{
	oidCiscoMemoryPool + ".5.1", // ciscoMemoryPoolUsed
	oidCiscoMemoryPool + ".6.1", // ciscoMemoryPoolFree
}

var defaultVendorOIDs = map[string][]NamedOID{
	"cisco": {
		{Name: "cpmCPUTotal5sec", OID: oidCiscoCPU + ".3.1"},
		{Name: "cpmCPUTotal1min", OID: oidCiscoCPU + ".4.1"},
		{Name: "cpmCPUTotal5min", OID: oidCiscoCPU + ".5.1"},
		{Name: "ciscoMemoryPoolUsed", OID: oidCiscoMemoryPool + ".5.1"},
		{Name: "ciscoMemoryPoolFree", OID: oidCiscoMemoryPool + ".6.1"},
		{Name: "chassisId", OID: "1.3.6.1.4.1.9.3.6.3.0"},
	},
	"juniper": {
		{Name: "jnxBoxDescr", OID: oidJuniperBox + ".2.0"},
		{Name: "jnxBoxSerialNo", OID: oidJuniperBox + ".3.0"},
		{Name: "jnxBoxInstalled", OID: oidJuniperBox + ".5.0"},
		{Name: "jnxOperatingTemp", OID: oidJuniperBox + ".13.1.7.9.1.0.0"},
		{Name: "jnxOperatingCPU", OID: oidJuniperBox + ".13.1.8.9.1.0.0"},
		{Name: "jnxOperatingBuffer", OID: oidJuniperBox + ".13.1.11.9.1.0.0"},
	},
}

var defaultEnterpriseOIDs = map[string]string{
	"1.3.6.1.4.1.9":     "Cisco",
	"1.3.6.1.4.1.2636":  "Juniper",
	"1.3.6.1.4.1.14988": "MikroTik",
	"1.3.6.1.4.1.11":    "HP",
	"1.3.6.1.4.1.12356": "Fortinet",
	"1.3.6.1.4.1.25461": "Palo Alto Networks",
	"1.3.6.1.4.1.41112": "Ubiquiti",
	"1.3.6.1.4.1.4526":  "Netgear",
	"1.3.6.1.4.1.674":   "Dell",
	"1.3.6.1.4.1.30065": "Arista",
	"1.3.6.1.4.1.2011":  "Huawei",
	"1.3.6.1.4.1.6574":  "Synology",
	"1.3.6.1.4.1.11863": "TP-Link",
	"1.3.6.1.4.1.311":   "Microsoft",
	"1.3.6.1.4.1.6876":  "VMware",
	"1.3.6.1.4.1.8072":  "Net-SNMP",
	"1.3.6.1.4.1.2021":  "Net-SNMP",
}

// Order matters: network operating systems come before generic host
// operating systems so that e.g. "Cisco IOS ... Linux" resolves to Cisco.
var defaultKeywords = []KeywordRule{
	{Keyword: "cisco", Vendor: "Cisco"},
	{Keyword: "juniper", Vendor: "Juniper"},
	{Keyword: "junos", Vendor: "Juniper"},
	{Keyword: "mikrotik", Vendor: "MikroTik"},
	{Keyword: "routeros", Vendor: "MikroTik"},
	{Keyword: "fortigate", Vendor: "Fortinet"},
	{Keyword: "fortinet", Vendor: "Fortinet"},
	{Keyword: "palo alto", Vendor: "Palo Alto Networks"},
	{Keyword: "pan-os", Vendor: "Palo Alto Networks"},
	{Keyword: "arista", Vendor: "Arista"},
	{Keyword: "huawei", Vendor: "Huawei"},
	{Keyword: "ubiquiti", Vendor: "Ubiquiti"},
	{Keyword: "edgeos", Vendor: "Ubiquiti"},
	{Keyword: "unifi", Vendor: "Ubiquiti"},
	{Keyword: "procurve", Vendor: "HP"},
	{Keyword: "aruba", Vendor: "HP"},
	{Keyword: "hewlett", Vendor: "HP"},
	{Keyword: "netgear", Vendor: "Netgear"},
	{Keyword: "tp-link", Vendor: "TP-Link"},
	{Keyword: "synology", Vendor: "Synology"},
	{Keyword: "vmware", Vendor: "VMware"},
	{Keyword: "dell", Vendor: "Dell"},
	{Keyword: "windows", Vendor: "Microsoft"},
	{Keyword: "microsoft", Vendor: "Microsoft"},
	{Keyword: "darwin", Vendor: "Apple"},
	{Keyword: "mac os", Vendor: "Apple"},
	{Keyword: "macos", Vendor: "Apple"},
	{Keyword: "apple", Vendor: "Apple"},
	{Keyword: "freebsd", Vendor: "FreeBSD"},
	{Keyword: "openbsd", Vendor: "OpenBSD"},
	{Keyword: "linux", Vendor: "Linux"},
}

var defaultNetworkVendors = []string{
	"Cisco", "Juniper", "MikroTik", "Fortinet", "Palo Alto Networks",
	"Arista", "Huawei", "Ubiquiti", "Netgear", "TP-Link",
}

var defaultOUI = map[string]string{
	"00:00:0c": "Cisco",
	"00:1a:2b": "Cisco",
	"00:1b:54": "Cisco",
	"00:05:85": "Juniper",
	"4c:5e:0c": "MikroTik",
	"00:0c:42": "MikroTik",
	"fc:ec:da": "Ubiquiti",
	"24:a4:3c": "Ubiquiti",
	"00:09:0f": "Fortinet",
	"00:1b:17": "Palo Alto Networks",
	"44:38:39": "Cumulus",
	"3c:d9:2b": "HP",
	"00:14:38": "HP",
	"dc:a6:32": "Raspberry Pi",
	"b8:27:eb": "Raspberry Pi",
	"d8:3a:dd": "Raspberry Pi",
	"f0:9e:63": "Apple",
	"bc:d1:d3": "Apple",
	"00:03:93": "Apple",
	"00:17:f2": "Apple",
	"ac:29:3a": "Canon",
	"50:e5:49": "Gigabyte",
	"00:11:32": "Synology",
	"24:8d:76": "Espressif",
	"84:f3:eb": "Espressif",
	"00:50:56": "VMware",
	"00:0c:29": "VMware",
	"52:54:00": "QEMU/KVM",
	"00:15:5d": "Microsoft",
	"08:00:27": "Oracle VirtualBox",
}

package snmp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/anstrom/netprobe/internal/catalog"
	"github.com/anstrom/netprobe/internal/device"
)

const sysUpTimeFormatted = "sysUpTimeFormatted"

// collector wraps one session and counts the objects that answered.
type collector struct {
	client Client
	oids   int
}

func (c *collector) get(oid string) (gosnmp.SnmpPDU, bool) {
	pdu, ok := getOne(c.client, oid)
	if ok {
		c.oids++
	}
	return pdu, ok
}

// system collects the system group. A failed object is left out.
func (c *collector) system(oids []catalog.NamedOID) map[string]string {
	sys := make(map[string]string, len(oids)+1)
	for _, o := range oids {
		pdu, ok := c.get(o.OID)
		if !ok {
			continue
		}
		sys[o.Name] = pduString(pdu)
		if o.OID == catalog.OIDSysUpTime {
			if n, ok := pduInt(pdu); ok && n.IsUint64() {
				sys[sysUpTimeFormatted] = FormatUptime(n.Uint64())
			}
		}
	}
	return sys
}

// FormatUptime renders centiseconds as "Dd HH:MM:SS.cc".
func FormatUptime(ticks uint64) string {
	cs := ticks % 100
	secs := ticks / 100
	days := secs / 86400
	secs %= 86400
	return fmt.Sprintf("%dd %02d:%02d:%02d.%02d", days, secs/3600, (secs%3600)/60, secs%60, cs)
}

// interfaces reads the interface table one index at a time, up to limit
// rows. Rows where nothing but the index answered are dropped.
func (c *collector) interfaces(countOID string, columns []catalog.NamedOID, limit int) []device.Interface {
	pdu, ok := c.get(countOID)
	if !ok {
		return nil
	}
	n, ok := pduInt(pdu)
	if !ok || n.Sign() <= 0 {
		return nil
	}
	count := limit
	if n.IsInt64() && n.Int64() < int64(limit) {
		count = int(n.Int64())
	}

	var out []device.Interface
	for idx := 1; idx <= count; idx++ {
		iface := device.Interface{Index: idx}
		populated := false
		for _, col := range columns {
			pdu, ok := c.get(col.OID + "." + strconv.Itoa(idx))
			if !ok {
				continue
			}
			if setInterfaceField(&iface, col.Name, pdu) {
				populated = true
			}
		}
		if populated {
			out = append(out, iface)
		}
	}
	return out
}

func setInterfaceField(iface *device.Interface, column string, pdu gosnmp.SnmpPDU) bool {
	if column == "ifDescr" {
		iface.Description = pduString(pdu)
		return iface.Description != ""
	}
	if column == "ifPhysAddress" {
		if b, ok := pdu.Value.([]byte); ok {
			iface.PhysAddress = device.FormatHardwareAddr(b)
		}
		return iface.PhysAddress != ""
	}

	n, ok := pduInt(pdu)
	if !ok {
		return false
	}
	switch column {
	case "ifType":
		iface.Type = n.Int64()
	case "ifMtu":
		iface.MTU = n.Int64()
	case "ifSpeed":
		iface.Speed = n.Uint64()
	case "ifAdminStatus":
		iface.AdminStatus = n.Int64()
	case "ifOperStatus":
		iface.OperStatus = n.Int64()
	case "ifInOctets":
		iface.InOctets = n.Uint64()
	case "ifOutOctets":
		iface.OutOctets = n.Uint64()
	case "ifInErrors":
		iface.InErrors = n.Uint64()
	case "ifOutErrors":
		iface.OutErrors = n.Uint64()
	default:
		return false
	}
	return true
}

// firstMAC returns the first usable hardware address in the table.
func firstMAC(ifaces []device.Interface) string {
	for _, iface := range ifaces {
		if device.IsRealMAC(iface.PhysAddress) {
			return device.NormalizeMAC(iface.PhysAddress)
		}
	}
	return ""
}

// performance probes CPU candidates until one answers and collects every
// memory candidate that answers.
func (c *collector) performance(cpuOIDs, memoryOIDs []string) *device.Performance {
	perf := &device.Performance{}
	for _, oid := range cpuOIDs {
		pdu, ok := c.get(oid)
		if !ok {
			continue
		}
		if v, ok := pduFloat(pdu); ok {
			perf.CPUUtilization = &v
			perf.CPUOID = oid
			break
		}
	}

	var values []int64
	for _, oid := range memoryOIDs {
		pdu, ok := c.get(oid)
		if !ok {
			continue
		}
		n, ok := pduInt(pdu)
		if !ok || !n.IsInt64() {
			continue
		}
		if perf.Memory == nil {
			perf.Memory = make(map[string]int64)
		}
		perf.Memory[oid] = n.Int64()
		values = append(values, n.Int64())
	}
	if len(values) == 2 {
		if used, free, ok := MemoryUsageFromPair(values[0], values[1]); ok {
			perf.MemoryUsedPercent = &used
			perf.MemoryFreePercent = &free
		}
	}

	if perf.IsEmpty() {
		return nil
	}
	return perf
}

// MemoryUsageFromPair treats two memory readings as a (used, free) pair
// and derives percentages from their sum. It cannot tell whether the two
// objects really are such a pair.
func MemoryUsageFromPair(used, free int64) (usedPercent, freePercent float64, ok bool) {
	if used < 0 || free < 0 {
		return 0, 0, false
	}
	total := used + free
	if total <= 0 {
		return 0, 0, false
	}
	usedPercent = float64(used) / float64(total) * 100
	return usedPercent, 100 - usedPercent, true
}

// vendorData fetches the vendor's OID catalog, keyed by vendor.
func (c *collector) vendorData(cat *catalog.Catalog, vendor string) map[string]map[string]string {
	oids := cat.VendorOIDs(vendor)
	if len(oids) == 0 {
		return nil
	}
	values := make(map[string]string, len(oids))
	for _, o := range oids {
		if pdu, ok := c.get(o.OID); ok {
			values[o.Name] = pduString(pdu)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return map[string]map[string]string{strings.ToLower(vendor): values}
}

// InferVendor matches the system description first and falls back to the
// enterprise prefix of the object identifier.
func InferVendor(cat *catalog.Catalog, system map[string]string) string {
	if v := cat.VendorFromDescription(system["sysDescr"]); v != "" {
		return v
	}
	return cat.VendorFromObjectID(system["sysObjectID"])
}

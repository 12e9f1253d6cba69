package discovery

import (
	"github.com/anstrom/netprobe/internal/device"
)

// MergePolicy folds a record into the device already known for its IP.
type MergePolicy func(existing *device.Device, rec device.ProbeRecord)

// DefaultMergePolicies returns the policies for the built-in methods.
func DefaultMergePolicies() map[device.Method]MergePolicy {
	return map[device.Method]MergePolicy{
		device.MethodARP:  MergeFill,
		device.MethodNmap: MergeNmap,
		device.MethodSNMP: MergeSNMP,
	}
}

// mergeCommon applies the rules every policy shares: the method set
// grows, hostname and vendor are only filled when empty, and the
// per-method details are merged.
func mergeCommon(d *device.Device, rec device.ProbeRecord) {
	d.AddMethod(rec.Method)
	if d.Hostname == "" {
		d.Hostname = rec.Hostname
	}
	if d.Vendor == "" {
		d.Vendor = rec.Vendor
	}
	d.MergeDetails(rec.Method, rec.Details)
	d.Touch(rec.Timestamp)
}

func fillMAC(d *device.Device, mac string) {
	if d.MAC == "" && mac != "" {
		d.MAC = mac
	}
}

func upgradeType(d *device.Device, t device.Type) {
	if (d.DeviceType == "" || d.DeviceType == device.TypeUnknown) && t != "" && t != device.TypeUnknown {
		d.DeviceType = t
	}
}

// MergeFill only fills fields that are still empty. It is used for ARP
// and for any method without a dedicated policy.
func MergeFill(d *device.Device, rec device.ProbeRecord) {
	mergeCommon(d, rec)
	fillMAC(d, rec.MAC)
	upgradeType(d, rec.DeviceType)
	if d.ResponseTime == nil {
		d.ResponseTime = rec.ResponseTime
	}
	if d.OSInfo.IsEmpty() && rec.OSInfo != nil {
		d.OSInfo = *rec.OSInfo
	}
	if len(d.Services) == 0 {
		d.Services = append([]device.Service(nil), rec.Services...)
	}
	if d.SNMP == nil {
		d.SNMP = rec.SNMP
	}
}

// MergeNmap treats the port scan as authoritative for OS info and
// services, which it overwrites outright.
func MergeNmap(d *device.Device, rec device.ProbeRecord) {
	mergeCommon(d, rec)
	fillMAC(d, rec.MAC)
	upgradeType(d, rec.DeviceType)

	if rec.OSInfo != nil {
		d.OSInfo = *rec.OSInfo
	} else {
		d.OSInfo = device.OSInfo{}
	}
	d.Services = append([]device.Service(nil), rec.Services...)

	if rec.ResponseTime != nil {
		d.ResponseTime = rec.ResponseTime
	}
}

// MergeSNMP lets SNMP evidence of a managed network device override a
// generic type guess, replaces the SNMP payload and adds the SNMP
// responder as a service unless one is already listed. The response time
// is only filled when no earlier phase measured one.
func MergeSNMP(d *device.Device, rec device.ProbeRecord) {
	mergeCommon(d, rec)
	fillMAC(d, rec.MAC)

	if rec.DeviceType == device.TypeNetworkDevice {
		d.DeviceType = device.TypeNetworkDevice
	} else {
		upgradeType(d, rec.DeviceType)
	}

	d.SNMP = rec.SNMP

	if !d.HasService(snmpServiceName) {
		for _, s := range rec.Services {
			if s.Name == snmpServiceName {
				d.Services = append(d.Services, s)
				break
			}
		}
	}

	if d.ResponseTime == nil {
		d.ResponseTime = rec.ResponseTime
	}
}

const snmpServiceName = "snmp"

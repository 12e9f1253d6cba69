// Package scanning implements the port and service discovery phase on top
// of nmap.
//
// A single nmap invocation covers the whole target range minus the
// exclusions, so nmap can amortize host discovery across the batch. The
// argument set is derived from Config:
//
//   - TCP ports enable a SYN or connect scan, UDP ports enable a UDP scan;
//     when both are set the port list carries T: and U: prefixes.
//   - Service detection adds -sV with the configured intensity.
//   - OS detection adds -O, optionally with --osscan-guess.
//   - Scripts select NSE categories or script names.
//
// Every host nmap reports as up is normalized into a device.ProbeRecord:
// MAC and vendor from the MAC address line, hostname from nmap or a
// reverse lookup, the most accurate OS match, every open or filtered
// port as a service, and a device type guessed from the open ports by
// ClassifyDeviceType.
//
// Setting Config.XMLInput replays a saved nmap XML report through the same
// normalization instead of running nmap.
//
// An invocation failure is returned from Scan as a typed error; the
// discovery engine records it and continues with the next phase.
package scanning

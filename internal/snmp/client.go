package snmp

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// Client is an open session with one agent.
type Client interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

// Dialer opens sessions for a (version, community) pair.
type Dialer interface {
	Dial(ctx context.Context, target string, version gosnmp.SnmpVersion, community string) (Client, error)
}

// UDPDialer opens gosnmp sessions over UDP.
type UDPDialer struct {
	Port    uint16
	Timeout time.Duration
	Retries int
}

// Dial implements Dialer.
func (d UDPDialer) Dial(ctx context.Context, target string, version gosnmp.SnmpVersion, community string) (Client, error) {
	g := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target,
		Port:      d.Port,
		Transport: "udp",
		Community: community,
		Version:   version,
		Timeout:   d.Timeout,
		Retries:   d.Retries,
		MaxOids:   gosnmp.MaxOids,
	}
	if err := g.Connect(); err != nil {
		return nil, err
	}
	return &session{g: g}, nil
}

type session struct {
	g *gosnmp.GoSNMP
}

func (s *session) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	return s.g.Get(oids)
}

func (s *session) Close() error {
	if s.g.Conn == nil {
		return nil
	}
	return s.g.Conn.Close()
}

// getOne fetches a single object. Missing objects, error responses and
// transport failures all report false.
func getOne(c Client, oid string) (gosnmp.SnmpPDU, bool) {
	pkt, err := c.Get([]string{oid})
	if err != nil || pkt == nil || pkt.Error != gosnmp.NoError || len(pkt.Variables) == 0 {
		return gosnmp.SnmpPDU{}, false
	}
	pdu := pkt.Variables[0]
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return gosnmp.SnmpPDU{}, false
	}
	if pdu.Value == nil {
		return gosnmp.SnmpPDU{}, false
	}
	return pdu, true
}

// pduString renders a value for display. Octet strings are decoded as
// text, object identifiers lose their leading dot.
func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return strings.TrimRight(string(v), "\x00")
	case string:
		if pdu.Type == gosnmp.ObjectIdentifier {
			return strings.TrimPrefix(v, ".")
		}
		return v
	default:
		return gosnmp.ToBigInt(v).String()
	}
}

// pduInt parses a numeric value. Octet strings holding digits are
// accepted because some agents report gauges as text.
func pduInt(pdu gosnmp.SnmpPDU) (*big.Int, bool) {
	switch v := pdu.Value.(type) {
	case []byte:
		n, ok := new(big.Int).SetString(strings.TrimSpace(string(v)), 10)
		return n, ok
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		return n, ok
	}
	switch pdu.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32,
		gosnmp.TimeTicks, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(pdu.Value), true
	}
	return nil, false
}

func pduFloat(pdu gosnmp.SnmpPDU) (float64, bool) {
	switch v := pdu.Value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	n, ok := pduInt(pdu)
	if !ok {
		return 0, false
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f, true
}

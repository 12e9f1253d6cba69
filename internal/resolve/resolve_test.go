package resolve

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/logging"
)

func startPTRServer(t *testing.T, records map[string]string, queries *atomic.Int32) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			queries.Add(1)
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			if name, ok := records[q.Name]; ok && q.Qtype == dns.TypePTR {
				m.Answer = append(m.Answer, &dns.PTR{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
					Ptr: name,
				})
			} else {
				m.SetRcode(r, dns.RcodeNameError)
			}
			_ = w.WriteMsg(m)
		}),
	}

	go func() { _ = srv.ActivateAndServe() }()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestLookupHostnameViaServer(t *testing.T) {
	var queries atomic.Int32
	addr := startPTRServer(t, map[string]string{
		"10.1.168.192.in-addr.arpa.": "router1.lan.",
	}, &queries)

	r := New(Config{Servers: []string{addr}, Timeout: time.Second}, logging.NewNop())

	assert.Equal(t, "router1.lan", r.LookupHostname(context.Background(), "192.168.1.10"))
	assert.Equal(t, "router1.lan", r.LookupHostname(context.Background(), "192.168.1.10"))
	assert.Equal(t, int32(1), queries.Load(), "second lookup must be served from cache")

	assert.Equal(t, "", r.LookupHostname(context.Background(), "192.168.1.11"))
	assert.Equal(t, "", r.LookupHostname(context.Background(), "192.168.1.11"))
	assert.Equal(t, int32(2), queries.Load(), "misses are cached too")
}

func TestLookupHostnameSystemFallback(t *testing.T) {
	r := New(Config{}, logging.NewNop())

	calls := 0
	r.system = func(_ context.Context, addr string) ([]string, error) {
		calls++
		if addr == "10.0.0.1" {
			return []string{"gw.example.com."}, nil
		}
		return nil, errors.New("no such host")
	}

	assert.Equal(t, "gw.example.com", r.LookupHostname(context.Background(), "10.0.0.1"))
	assert.Equal(t, "", r.LookupHostname(context.Background(), "10.0.0.2"))
	assert.Equal(t, "", r.LookupHostname(context.Background(), "not-an-ip"))
	assert.Equal(t, 2, calls)
}

func TestWithPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.1.1.1", "1.1.1.1:53"},
		{"1.1.1.1:5353", "1.1.1.1:5353"},
		{"2606:4700::1111", "[2606:4700::1111]:53"},
		{"[2606:4700::1111]:53", "[2606:4700::1111]:53"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, withPort(tt.in))
		})
	}
}

func TestServersAreNormalized(t *testing.T) {
	r := New(Config{Servers: []string{" 9.9.9.9 ", ""}}, nil)
	assert.Equal(t, []string{"9.9.9.9:53"}, r.Servers())
}

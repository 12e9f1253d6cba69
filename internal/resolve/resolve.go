// Package resolve performs best-effort reverse DNS lookups for discovered
// hosts. Lookups never fail: an unresolvable address yields "".
package resolve

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/projectdiscovery/gcache"

	"github.com/anstrom/netprobe/internal/logging"
)

const (
	defaultTimeout   = 2 * time.Second
	defaultCacheSize = 4096
	defaultCacheTTL  = 10 * time.Minute
	dnsPort          = "53"
)

// Config controls the resolver.
type Config struct {
	// Servers are queried in order for PTR records. Empty means the
	// system resolver is used.
	Servers   []string      `yaml:"servers" json:"servers"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultConfig returns the resolver defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   defaultTimeout,
		CacheSize: defaultCacheSize,
		CacheTTL:  defaultCacheTTL,
	}
}

// Resolver maps IP addresses to host names with an LRU cache in front.
type Resolver struct {
	servers []string
	client  *dns.Client
	cache   gcache.Cache[string, string]
	system  func(ctx context.Context, addr string) ([]string, error)
	timeout time.Duration
	logger  *logging.Logger
}

// New creates a resolver.
func New(cfg Config, logger *logging.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, withPort(s))
		}
	}

	return &Resolver{
		servers: servers,
		client:  &dns.Client{Net: "udp", Timeout: cfg.Timeout},
		cache: gcache.New[string, string](cfg.CacheSize).
			LRU().
			Expiration(cfg.CacheTTL).
			Build(),
		system:  net.DefaultResolver.LookupAddr,
		timeout: cfg.Timeout,
		logger:  logger.WithComponent("resolve"),
	}
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), dnsPort)
}

// LookupHostname returns the PTR name of ip without the trailing dot,
// or "" when none is found. Results, including misses, are cached.
func (r *Resolver) LookupHostname(ctx context.Context, ip string) string {
	if net.ParseIP(ip) == nil {
		return ""
	}
	if name, err := r.cache.Get(ip); err == nil {
		return name
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var name string
	if len(r.servers) > 0 {
		name = r.queryServers(ctx, ip)
	} else {
		name = r.querySystem(ctx, ip)
	}

	_ = r.cache.Set(ip, name)
	return name
}

func (r *Resolver) queryServers(ctx context.Context, ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			r.logger.DebugHost("PTR query failed", ip, "server", server, "error", err)
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, ".")
			}
		}
	}
	return ""
}

func (r *Resolver) querySystem(ctx context.Context, ip string) string {
	names, err := r.system(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// Servers returns the configured DNS servers with ports.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

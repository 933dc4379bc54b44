package httpclient

import (
	"context"
	"net"
	"strings"
)

// Verdict is the outcome of an address check.
type Verdict struct {
	// Reason explains a refusal.
	Reason string
	// ResolvedIP is the address the connection must be pinned to.
	ResolvedIP string
	Allowed    bool
}

// Resolver looks up the addresses of a host.
type Resolver func(ctx context.Context, host string) ([]net.IP, error)

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// Filter decides which destinations outbound connections may reach. By
// default it blocks every address that could be used for SSRF.
type Filter struct {
	resolve        Resolver
	allowlist      []string
	blocklist      []string
	blockPrivate   bool
	blockLoopback  bool
	blockLinkLocal bool
	blockMulticast bool
}

// NewFilter creates a filter with secure defaults.
func NewFilter(opts ...FilterOption) *Filter {
	f := &Filter{
		resolve:        lookupIP,
		blockPrivate:   true,
		blockLoopback:  true,
		blockLinkLocal: true,
		blockMulticast: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func lookupIP(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// WithAllowPrivate lets connections reach private and loopback addresses.
func WithAllowPrivate(allow bool) FilterOption {
	return func(f *Filter) {
		f.blockPrivate = !allow
		f.blockLoopback = !allow
	}
}

// WithAllowlist sets hosts, "*.suffix" wildcards or CIDRs that bypass the
// address class checks.
func WithAllowlist(entries ...string) FilterOption {
	return func(f *Filter) { f.allowlist = entries }
}

// WithBlocklist sets hosts, wildcards or CIDRs that are always refused.
func WithBlocklist(entries ...string) FilterOption {
	return func(f *Filter) { f.blocklist = entries }
}

// WithResolver replaces DNS resolution.
func WithResolver(r Resolver) FilterOption {
	return func(f *Filter) {
		if r != nil {
			f.resolve = r
		}
	}
}

// Check resolves host once and validates the first address. Callers must
// connect to Verdict.ResolvedIP so a second lookup cannot rebind the name.
func (f *Filter) Check(ctx context.Context, host string) Verdict {
	host = strings.TrimSuffix(strings.ToLower(strings.Trim(host, "[]")), ".")
	if host == "" {
		return Verdict{Reason: "empty host"}
	}

	for _, pattern := range f.blocklist {
		if matchesPattern(host, pattern) {
			return Verdict{Reason: "address in blocklist"}
		}
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := f.resolve(ctx, host)
		if err != nil {
			return Verdict{Reason: "DNS resolution failed: " + err.Error()}
		}
		if len(ips) == 0 {
			return Verdict{Reason: "DNS resolution returned no addresses"}
		}
		ip = ips[0]
	}

	for _, pattern := range f.blocklist {
		if matchesPattern(ip.String(), pattern) {
			return Verdict{Reason: "IP in blocklist"}
		}
	}
	for _, pattern := range f.allowlist {
		if matchesPattern(host, pattern) || matchesPattern(ip.String(), pattern) {
			return Verdict{Allowed: true, ResolvedIP: ip.String()}
		}
	}
	if reason := f.classify(ip); reason != "" {
		return Verdict{Reason: reason}
	}
	return Verdict{Allowed: true, ResolvedIP: ip.String()}
}

func (f *Filter) classify(ip net.IP) string {
	switch {
	case f.blockLoopback && ip.IsLoopback():
		return "localhost/loopback addresses blocked"
	case f.blockPrivate && ip.IsPrivate():
		return "private addresses blocked (RFC 1918)"
	case f.blockLinkLocal && (ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()):
		return "link-local addresses blocked"
	case f.blockMulticast && ip.IsMulticast():
		return "multicast addresses blocked"
	case ip.IsUnspecified():
		return "unspecified address blocked"
	}
	return ""
}

// matchesPattern checks a host or IP against a hostname, "*.suffix" or CIDR.
func matchesPattern(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix)
	}
	if ip := net.ParseIP(host); ip != nil {
		if _, cidr, err := net.ParseCIDR(pattern); err == nil {
			return cidr.Contains(ip)
		}
	}
	return false
}

// Package policy enforces network and settings grants with doublestar globs.
package policy

import (
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/domain/ports"
)

type policyConfig struct {
	denialHandler ports.DenialHandler
}

func defaultPolicyConfig() policyConfig {
	return policyConfig{
		denialHandler: &NopDenialHandler{},
	}
}

// PolicyOption configures the Policy.
type PolicyOption func(*policyConfig)

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h ports.DenialHandler) PolicyOption {
	return func(c *policyConfig) {
		if h != nil {
			c.denialHandler = h
		}
	}
}

// Policy checks requests against a GrantSet. Compiled rules are cached per
// grant set pointer, so a GrantSet must not be mutated after first use.
type Policy struct {
	config policyConfig
	cache  sync.Map // *entities.GrantSet -> *compiledGrantSet
}

type compiledGrantSet struct {
	networkRules  []compiledNetworkRule
	settingsRules []compiledSettingsRule
}

type compiledNetworkRule struct {
	hosts []string
	ports []portRange
}

type compiledSettingsRule struct {
	keys []string
	op   string
}

type portRange struct {
	min, max int
}

// NewPolicy creates a new Policy.
func NewPolicy(opts ...PolicyOption) *Policy {
	cfg := defaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Policy{config: cfg}
}

var _ ports.Policy = (*Policy)(nil)

func (p *Policy) compiled(grants *entities.GrantSet) *compiledGrantSet {
	if grants == nil {
		return nil
	}
	if v, ok := p.cache.Load(grants); ok {
		return v.(*compiledGrantSet)
	}

	c := &compiledGrantSet{}
	if grants.Network != nil {
		for _, rule := range grants.Network.Rules {
			cr := compiledNetworkRule{}
			for _, h := range rule.Hosts {
				if doublestar.ValidatePattern(h) {
					cr.hosts = append(cr.hosts, strings.ToLower(h))
				}
			}
			for _, portStr := range rule.Ports {
				if pr, ok := parsePortRange(portStr); ok {
					cr.ports = append(cr.ports, pr)
				}
			}
			c.networkRules = append(c.networkRules, cr)
		}
	}
	if grants.Settings != nil {
		for _, rule := range grants.Settings.Rules {
			cr := compiledSettingsRule{op: rule.Operation}
			for _, k := range rule.Keys {
				if doublestar.ValidatePattern(k) {
					cr.keys = append(cr.keys, k)
				}
			}
			c.settingsRules = append(c.settingsRules, cr)
		}
	}

	actual, _ := p.cache.LoadOrStore(grants, c)
	return actual.(*compiledGrantSet)
}

func parsePortRange(s string) (portRange, bool) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return portRange{0, 65535}, true
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		minPort, err1 := strconv.Atoi(strings.TrimSpace(lo))
		maxPort, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || minPort > maxPort {
			return portRange{}, false
		}
		return portRange{minPort, maxPort}, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return portRange{}, false
	}
	return portRange{v, v}, true
}

// CheckNetwork reports whether some rule matches both host and port.
func (p *Policy) CheckNetwork(req entities.NetworkRequest, grants *entities.GrantSet) bool {
	c := p.compiled(grants)
	if c == nil {
		p.config.denialHandler.OnDenial("network", req, "no grants")
		return false
	}

	host := strings.ToLower(req.Host)
	for _, rule := range c.networkRules {
		if matchAny(rule.hosts, host) && rule.allowsPort(req.Port) {
			return true
		}
	}

	p.config.denialHandler.OnDenial("network", req, "host/port not allowed")
	return false
}

func (r compiledNetworkRule) allowsPort(port int) bool {
	for _, pr := range r.ports {
		if port >= pr.min && port <= pr.max {
			return true
		}
	}
	return false
}

// CheckSettings reports whether some rule grants the operation on the key.
func (p *Policy) CheckSettings(req entities.SettingsRequest, grants *entities.GrantSet) bool {
	c := p.compiled(grants)
	if c == nil {
		p.config.denialHandler.OnDenial("settings", req, "no grants")
		return false
	}

	for _, rule := range c.settingsRules {
		if rule.op != "read-write" && rule.op != req.Operation {
			continue
		}
		if matchAny(rule.keys, req.Key) {
			return true
		}
	}

	p.config.denialHandler.OnDenial("settings", req, "key/operation not allowed")
	return false
}

func matchAny(patterns []string, s string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, s); matched {
			return true
		}
	}
	return false
}

package entities

import "slices"

// GrantSet is every permission granted to a guest.
type GrantSet struct {
	Network  *NetworkCapability  `json:"network,omitempty" yaml:"network,omitempty"`
	Settings *SettingsCapability `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// IsEmpty returns true if no rules are present.
func (g *GrantSet) IsEmpty() bool {
	if g == nil {
		return true
	}
	if g.Network != nil && len(g.Network.Rules) > 0 {
		return false
	}
	if g.Settings != nil && len(g.Settings.Rules) > 0 {
		return false
	}
	return true
}

// Merge unions other into g.
func (g *GrantSet) Merge(other *GrantSet) {
	if other == nil {
		return
	}
	if other.Network != nil && len(other.Network.Rules) > 0 {
		if g.Network == nil {
			g.Network = &NetworkCapability{}
		}
		for _, rule := range other.Network.Rules {
			if !g.containsNetworkRule(rule) {
				g.Network.Rules = append(g.Network.Rules, rule)
			}
		}
	}
	if other.Settings != nil && len(other.Settings.Rules) > 0 {
		if g.Settings == nil {
			g.Settings = &SettingsCapability{}
		}
		for _, rule := range other.Settings.Rules {
			if !g.containsSettingsRule(rule) {
				g.Settings.Rules = append(g.Settings.Rules, rule)
			}
		}
	}
}

// Clone returns a deep copy of g.
func (g *GrantSet) Clone() *GrantSet {
	if g == nil {
		return nil
	}
	clone := &GrantSet{}
	if g.Network != nil {
		clone.Network = &NetworkCapability{Rules: make([]NetworkRule, len(g.Network.Rules))}
		for i, rule := range g.Network.Rules {
			clone.Network.Rules[i] = NetworkRule{
				Hosts: slices.Clone(rule.Hosts),
				Ports: slices.Clone(rule.Ports),
			}
		}
	}
	if g.Settings != nil {
		clone.Settings = &SettingsCapability{Rules: make([]SettingsRule, len(g.Settings.Rules))}
		for i, rule := range g.Settings.Rules {
			clone.Settings.Rules[i] = SettingsRule{
				Keys:      slices.Clone(rule.Keys),
				Operation: rule.Operation,
			}
		}
	}
	return clone
}

// Difference returns the rules of g that other does not carry verbatim.
func (g *GrantSet) Difference(other *GrantSet) *GrantSet {
	if g == nil {
		return nil
	}
	if other == nil {
		return g.Clone()
	}

	result := &GrantSet{}
	if g.Network != nil {
		var rules []NetworkRule
		for _, rule := range g.Network.Rules {
			if !other.containsNetworkRule(rule) {
				rules = append(rules, rule)
			}
		}
		if len(rules) > 0 {
			result.Network = &NetworkCapability{Rules: rules}
		}
	}
	if g.Settings != nil {
		var rules []SettingsRule
		for _, rule := range g.Settings.Rules {
			if !other.containsSettingsRule(rule) {
				rules = append(rules, rule)
			}
		}
		if len(rules) > 0 {
			result.Settings = &SettingsCapability{Rules: rules}
		}
	}
	return result
}

// Contains returns true if g carries every rule of other.
func (g *GrantSet) Contains(other *GrantSet) bool {
	if other.IsEmpty() {
		return true
	}
	if g == nil {
		return false
	}
	return other.Difference(g).IsEmpty()
}

func (g *GrantSet) containsNetworkRule(rule NetworkRule) bool {
	if g.Network == nil {
		return false
	}
	for _, r := range g.Network.Rules {
		if slices.Equal(r.Hosts, rule.Hosts) && slices.Equal(r.Ports, rule.Ports) {
			return true
		}
	}
	return false
}

func (g *GrantSet) containsSettingsRule(rule SettingsRule) bool {
	if g.Settings == nil {
		return false
	}
	for _, r := range g.Settings.Rules {
		if r.Operation == rule.Operation && slices.Equal(r.Keys, rule.Keys) {
			return true
		}
	}
	return false
}

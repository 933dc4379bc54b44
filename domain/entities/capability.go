package entities

import (
	"math/bits"
	"strings"
)

// Capability is one optional guest entry point. Values are bit flags so that
// a guest can announce its set through the capabilities export.
type Capability uint32

const (
	CapSearch Capability = 1 << iota
	CapContentUpdate
	CapPageList
	CapHome
	CapListing
	CapDynamicFilters
	CapDynamicSettings
	CapDynamicListings
	CapImageRequest
	CapDeepLink
	CapBasicLogin
	CapWebLogin
	CapNotification
	CapMigration
)

// Names of the infrastructure exports every guest provides.
const (
	ExportStart        = "start"
	ExportFreeResult   = "free_result"
	ExportCapabilities = "capabilities"
)

var capabilityInfo = []struct {
	cap    Capability
	name   string
	export string
}{
	{CapSearch, "search", "get_search_list"},
	{CapContentUpdate, "content_update", "get_content_update"},
	{CapPageList, "page_list", "get_page_list"},
	{CapHome, "home", "get_home"},
	{CapListing, "listing", "get_listing"},
	{CapDynamicFilters, "dynamic_filters", "get_dynamic_filters"},
	{CapDynamicSettings, "dynamic_settings", "get_dynamic_settings"},
	{CapDynamicListings, "dynamic_listings", "get_dynamic_listings"},
	{CapImageRequest, "image_request", "get_image_request"},
	{CapDeepLink, "deep_link", "handle_deep_link"},
	{CapBasicLogin, "basic_login", "handle_basic_login"},
	{CapWebLogin, "web_login", "handle_web_login"},
	{CapNotification, "notification", "handle_notification"},
	{CapMigration, "migration", "handle_migration"},
}

// AllCapabilities lists every capability in bit order.
func AllCapabilities() []Capability {
	out := make([]Capability, len(capabilityInfo))
	for i, info := range capabilityInfo {
		out[i] = info.cap
	}
	return out
}

// Export returns the guest export that implements c.
func (c Capability) Export() string {
	for _, info := range capabilityInfo {
		if info.cap == c {
			return info.export
		}
	}
	return ""
}

func (c Capability) String() string {
	for _, info := range capabilityInfo {
		if info.cap == c {
			return info.name
		}
	}
	return "unknown"
}

// CapabilityForExport maps an export name back to its capability.
func CapabilityForExport(export string) (Capability, bool) {
	for _, info := range capabilityInfo {
		if info.export == export {
			return info.cap, true
		}
	}
	return 0, false
}

// CapabilitySet is a set of capabilities.
type CapabilitySet uint32

// NewCapabilitySet builds a set from caps.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	return c != 0 && uint32(s)&uint32(c) == uint32(c)
}

// With returns the set with c added.
func (s CapabilitySet) With(c Capability) CapabilitySet {
	return CapabilitySet(uint32(s) | uint32(c))
}

// Intersect returns the capabilities present in both sets.
func (s CapabilitySet) Intersect(other CapabilitySet) CapabilitySet {
	return s & other
}

// Len returns the number of capabilities in the set.
func (s CapabilitySet) Len() int {
	return bits.OnesCount32(uint32(s) & uint32(allCapabilityBits))
}

// List returns the capabilities in bit order.
func (s CapabilitySet) List() []Capability {
	var out []Capability
	for _, info := range capabilityInfo {
		if s.Has(info.cap) {
			out = append(out, info.cap)
		}
	}
	return out
}

func (s CapabilitySet) String() string {
	caps := s.List()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

const allCapabilityBits = CapMigration<<1 - 1

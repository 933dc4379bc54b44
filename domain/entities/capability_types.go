package entities

// NetworkCapability lists the hosts a guest may reach.
type NetworkCapability struct {
	Rules []NetworkRule `json:"rules" yaml:"rules" validate:"dive" jsonschema:"required"`
}

// NetworkRule matches a request when both a host glob and a port match.
type NetworkRule struct {
	Hosts []string `json:"hosts" yaml:"hosts" jsonschema:"required"`
	Ports []string `json:"ports" yaml:"ports" jsonschema:"required"` // "443", "8000-9000", "*"
}

// SettingsCapability lists the settings keys a guest may touch.
type SettingsCapability struct {
	Rules []SettingsRule `json:"rules" yaml:"rules" validate:"dive" jsonschema:"required"`
}

// SettingsRule grants an operation on keys matching any of the globs.
type SettingsRule struct {
	Keys      []string `json:"keys" yaml:"keys" jsonschema:"required"`
	Operation string   `json:"op" yaml:"op" validate:"oneof=read write read-write" jsonschema:"required,enum=read,enum=write,enum=read-write"`
}

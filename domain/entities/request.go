package entities

// NetworkRequest is a runtime request to reach a host.
type NetworkRequest struct {
	Host string
	Port int
}

// Settings operations checked by the policy.
const (
	SettingsRead  = "read"
	SettingsWrite = "write"
)

// SettingsRequest is a runtime request to read or write a settings key.
type SettingsRequest struct {
	Key       string
	Operation string
}

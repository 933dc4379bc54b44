// Package entities holds the host's domain types: configuration, grants,
// guest capabilities and setting kinds. It depends on nothing but the
// standard library so that both the host and the guest SDK can import it.
package entities

// Package ports defines the interfaces the host's adapters depend on. The
// infrastructure packages implement them; tests substitute Mock* structs.
package ports

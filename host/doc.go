// Package host runs one sandboxed guest module and drives its exports.
//
// An Executor owns a wazero runtime with every import namespace registered.
// Load instantiates a guest, runs its initializer and records which optional
// capabilities it exports. The returned Plugin serializes calls: arguments
// travel as Buffer resources, and each result is a pointer to an Encoded
// Buffer that the guest leaked for the host. The host copies the envelope into
// a Lease and hands the pointer back through the guest's free_result export
// when the lease is released.
package host

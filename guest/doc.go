// Package guest is the guest side of the protocol: it turns a content source
// written in Go into the fixed export table the host drives.
//
// A source implements Source plus any of the optional capability interfaces
// and registers itself from an init function:
//
//	func init() {
//		guest.Register(&mySource{})
//	}
//
// Built with GOOS=wasip1 and -buildmode=c-shared, the package exports start,
// capabilities, free_result and one entry point per capability. Each entry
// point reads its argument handles through the std namespace, dispatches to
// the source and leaks an Encoded Buffer that stays pinned until the host
// calls free_result with its pointer.
package guest

// Package hostfuncs implements the functions a guest imports, one bundle per
// import namespace (env, std, html, net, js, canvas, defaults).
//
// Host functions here have no wasm runtime dependency. They see guest linear
// memory through the Memory interface and their arguments and results as a
// []uint64 stack, the same shape wazero's GoModuleFunc uses, so a runtime
// adapter only has to forward calls.
//
// Every function follows one call convention: decode the arguments in order,
// returning the namespace's error code for the first one that fails without
// touching any adapter; run the adapter; store the outcome as a resource and
// return its handle, or return a non-negative scalar. Negative i32 results are
// error codes from the namespace's closed set (see errors.go).
package hostfuncs

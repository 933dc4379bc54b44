// Package wazero binds a hostfuncs.HandlerRegistry to a wazero runtime.
//
// Each import namespace of the registry becomes a host module of the same
// name. Registry functions already speak wazero's calling shape (a []uint64
// stack), so binding only swaps the calling api.Module for its memory:
//
//	runtime := wazero.NewRuntime(ctx)
//	err = wazero.RegisterWithRuntime(ctx, runtime, registry)
//
// Functions that need the raw module, or that should skip the registry's
// middleware, can be added with WithCustomHandler.
package wazero

package hostfuncs

import (
	"context"
	"math"
)

// ValueType is a WebAssembly value type. The values match the binary
// encoding, and therefore wazero's api.ValueType.
type ValueType = byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
	F32 ValueType = 0x7d
	F64 ValueType = 0x7c
)

// Func is a host function body. Parameters arrive in stack; results are
// written back starting at stack[0].
type Func func(ctx context.Context, mem Memory, stack []uint64)

// HostFunc describes one importable function.
type HostFunc struct {
	Fn      Func
	Name    string
	Params  []ValueType
	Results []ValueType
}

func fn(name string, params, results []ValueType, f Func) HostFunc {
	return HostFunc{Name: name, Params: params, Results: results, Fn: f}
}

// Common signatures.
var (
	none  = []ValueType{}
	i32   = []ValueType{I32}
	i32x2 = []ValueType{I32, I32}
	i32x3 = []ValueType{I32, I32, I32}
	i32x4 = []ValueType{I32, I32, I32, I32}
	i64r  = []ValueType{I64}
	f64r  = []ValueType{F64}
)

//nolint:gosec // G115: wasm i32 values travel as the low 32 bits
func argI32(stack []uint64, i int) int32 { return int32(uint32(stack[i])) }

func argI64(stack []uint64, i int) int64 { return int64(stack[i]) } //nolint:gosec // G115: two's complement

//nolint:gosec // G115: f32 bits travel in the low 32 bits
func argF32(stack []uint64, i int) float32 { return math.Float32frombits(uint32(stack[i])) }

func argF64(stack []uint64, i int) float64 { return math.Float64frombits(stack[i]) }

//nolint:gosec // G115: sign-preserving reinterpretation
func retI32(stack []uint64, v int32) { stack[0] = uint64(uint32(v)) }

func retI64(stack []uint64, v int64) { stack[0] = uint64(v) } //nolint:gosec // G115: two's complement

func retF64(stack []uint64, v float64) { stack[0] = math.Float64bits(v) }

func retBool(stack []uint64, b bool) {
	if b {
		retI32(stack, 1)
		return
	}
	retI32(stack, 0)
}

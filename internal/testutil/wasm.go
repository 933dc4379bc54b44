package testutil

// Module assembles a small core wasm module for runtime tests. Functions take
// and return i32 values only. Add imports before functions so indices stay
// stable. The module always defines and exports one page of memory as
// "memory".
type Module struct {
	imports []signature
	funcs   []function
	globals []string
	data    []segment
}

type signature struct {
	module, name    string
	params, results int
}

type function struct {
	export string
	body   []byte
	sig    signature
}

type segment struct {
	bytes  []byte
	offset uint32
}

// Opcodes used by test bodies.
const (
	OpUnreachable byte = 0x00
	OpDrop        byte = 0x1a
	OpI32Add      byte = 0x6a
	OpI32Sub      byte = 0x6b
)

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{}
}

// Import declares an imported function and returns its function index.
func (m *Module) Import(module, name string, params, results int) uint32 {
	m.imports = append(m.imports, signature{module: module, name: name, params: params, results: results})
	return uint32(len(m.imports) - 1) //nolint:gosec // G115: test modules are tiny
}

// Func defines a function, exported as export unless it is empty, and returns
// its function index.
func (m *Module) Func(export string, params, results int, body ...[]byte) uint32 {
	m.funcs = append(m.funcs, function{
		export: export,
		sig:    signature{params: params, results: results},
		body:   Code(body...),
	})
	return uint32(len(m.imports) + len(m.funcs) - 1) //nolint:gosec // G115: test modules are tiny
}

// Global defines a mutable i32 global initialised to zero, exported under
// export, and returns its index.
func (m *Module) Global(export string) uint32 {
	m.globals = append(m.globals, export)
	return uint32(len(m.globals) - 1) //nolint:gosec // G115: test modules are tiny
}

// Data places b at offset in memory when the module is instantiated.
func (m *Module) Data(offset uint32, b []byte) {
	m.data = append(m.data, segment{offset: offset, bytes: b})
}

// Bytes encodes the module in the binary format.
func (m *Module) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var types [][]byte
	for _, s := range m.imports {
		types = append(types, funcType(s))
	}
	for _, f := range m.funcs {
		types = append(types, funcType(f.sig))
	}
	out = append(out, section(1, vec(types))...)

	var imports [][]byte
	for i, s := range m.imports {
		entry := append(name(s.module), name(s.name)...)
		entry = append(entry, 0x00)
		imports = append(imports, append(entry, uleb(uint64(i))...))
	}
	out = append(out, section(2, vec(imports))...)

	var funcs [][]byte
	for i := range m.funcs {
		funcs = append(funcs, uleb(uint64(len(m.imports)+i)))
	}
	out = append(out, section(3, vec(funcs))...)

	out = append(out, section(5, vec([][]byte{{0x00, 0x01}}))...)

	if len(m.globals) > 0 {
		var globals [][]byte
		for range m.globals {
			globals = append(globals, []byte{0x7f, 0x01, 0x41, 0x00, 0x0b})
		}
		out = append(out, section(6, vec(globals))...)
	}

	exports := [][]byte{append(name("memory"), 0x02, 0x00)}
	for i, f := range m.funcs {
		if f.export != "" {
			entry := append(name(f.export), 0x00)
			exports = append(exports, append(entry, uleb(uint64(len(m.imports)+i))...))
		}
	}
	for i, g := range m.globals {
		entry := append(name(g), 0x03)
		exports = append(exports, append(entry, uleb(uint64(i))...))
	}
	out = append(out, section(7, vec(exports))...)

	var code [][]byte
	for _, f := range m.funcs {
		body := append([]byte{0x00}, f.body...)
		body = append(body, 0x0b)
		code = append(code, append(uleb(uint64(len(body))), body...))
	}
	out = append(out, section(10, vec(code))...)

	if len(m.data) > 0 {
		var data [][]byte
		for _, d := range m.data {
			entry := append([]byte{0x00}, I32Const(int32(d.offset))...) //nolint:gosec // G115: offsets fit one page
			entry = append(entry, 0x0b)
			entry = append(entry, uleb(uint64(len(d.bytes)))...)
			data = append(data, append(entry, d.bytes...))
		}
		out = append(out, section(11, vec(data))...)
	}
	return out
}

// Code concatenates instruction sequences.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Op wraps single-byte opcodes.
func Op(ops ...byte) []byte { return ops }

// I32Const pushes v.
func I32Const(v int32) []byte { return append([]byte{0x41}, sleb(int64(v))...) }

// LocalGet pushes parameter i.
func LocalGet(i uint32) []byte { return append([]byte{0x20}, uleb(uint64(i))...) }

// Call calls function index f.
func Call(f uint32) []byte { return append([]byte{0x10}, uleb(uint64(f))...) }

// GlobalGet pushes global i.
func GlobalGet(i uint32) []byte { return append([]byte{0x23}, uleb(uint64(i))...) }

// GlobalSet pops into global i.
func GlobalSet(i uint32) []byte { return append([]byte{0x24}, uleb(uint64(i))...) }

// Increment adds one to global i.
func Increment(i uint32) []byte {
	return Code(GlobalGet(i), I32Const(1), Op(OpI32Add), GlobalSet(i))
}

func funcType(s signature) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint64(s.params))...)
	for range s.params {
		out = append(out, 0x7f)
	}
	out = append(out, uleb(uint64(s.results))...)
	for range s.results {
		out = append(out, 0x7f)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := append([]byte{id}, uleb(uint64(len(body)))...)
	return append(out, body...)
}

func vec(items [][]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

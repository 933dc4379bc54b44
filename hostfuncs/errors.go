package hostfuncs

import "strconv"

// Import namespaces.
const (
	NamespaceEnv      = "env"
	NamespaceStd      = "std"
	NamespaceHTML     = "html"
	NamespaceNet      = "net"
	NamespaceJS       = "js"
	NamespaceCanvas   = "canvas"
	NamespaceDefaults = "defaults"
)

// env error codes.
const (
	EnvInvalidString int32 = -1
)

// std error codes.
const (
	StdInvalidDescriptor int32 = -1
	StdInvalidBufferSize int32 = -2
	StdFailedMemoryWrite int32 = -3
	StdInvalidString     int32 = -4
	StdInvalidDateString int32 = -5
	StdInvalidValue      int32 = -6
	StdTableFull         int32 = -7
)

// html error codes.
const (
	HTMLInvalidDescriptor int32 = -1
	HTMLInvalidString     int32 = -2
	HTMLInvalidHTML       int32 = -3
	HTMLInvalidQuery      int32 = -4
	HTMLNoResult          int32 = -5
	HTMLGenericError      int32 = -6
)

// net error codes.
const (
	NetInvalidDescriptor int32 = -1
	NetInvalidString     int32 = -2
	NetInvalidMethod     int32 = -3
	NetInvalidURL        int32 = -4
	NetInvalidHTML       int32 = -5
	NetInvalidBufferSize int32 = -6
	NetMissingData       int32 = -7
	NetMissingResponse   int32 = -8
	NetMissingURL        int32 = -9
	NetRequestError      int32 = -10
	NetFailedMemoryWrite int32 = -11
	NetNotAnImage        int32 = -12
	NetClosed            int32 = -13
	NetDenied            int32 = -14
)

// js error codes.
const (
	JSMissingResult    int32 = -1
	JSInvalidContext   int32 = -2
	JSInvalidString    int32 = -3
	JSEvaluationFailed int32 = -4
)

// canvas error codes.
const (
	CanvasInvalidContext      int32 = -1
	CanvasInvalidImagePointer int32 = -2
	CanvasInvalidImage        int32 = -3
	CanvasInvalidSrcRect      int32 = -4
	CanvasInvalidResult       int32 = -5
	CanvasInvalidBounds       int32 = -6
	CanvasInvalidPath         int32 = -7
	CanvasInvalidStyle        int32 = -8
	CanvasInvalidString       int32 = -9
	CanvasInvalidFont         int32 = -10
	CanvasFontLoadFailed      int32 = -11
)

// defaults error codes.
const (
	DefaultsInvalidKey     int32 = -1
	DefaultsInvalidValue   int32 = -2
	DefaultsFailedEncoding int32 = -3
	DefaultsFailedDecoding int32 = -4
	DefaultsDenied         int32 = -5
)

var codeNames = map[string][]string{
	NamespaceEnv: {"InvalidString"},
	NamespaceStd: {
		"InvalidDescriptor", "InvalidBufferSize", "FailedMemoryWrite",
		"InvalidString", "InvalidDateString", "InvalidValue", "TableFull",
	},
	NamespaceHTML: {
		"InvalidDescriptor", "InvalidString", "InvalidHtml",
		"InvalidQuery", "NoResult", "GenericError",
	},
	NamespaceNet: {
		"InvalidDescriptor", "InvalidString", "InvalidMethod", "InvalidUrl",
		"InvalidHtml", "InvalidBufferSize", "MissingData", "MissingResponse",
		"MissingUrl", "RequestError", "FailedMemoryWrite", "NotAnImage",
		"Closed", "Denied",
	},
	NamespaceJS: {"MissingResult", "InvalidContext", "InvalidString", "EvaluationFailed"},
	NamespaceCanvas: {
		"InvalidContext", "InvalidImagePointer", "InvalidImage", "InvalidSrcRect",
		"InvalidResult", "InvalidBounds", "InvalidPath", "InvalidStyle",
		"InvalidString", "InvalidFont", "FontLoadFailed",
	},
	NamespaceDefaults: {"InvalidKey", "InvalidValue", "FailedEncoding", "FailedDecoding", "Denied"},
}

var genericCodes = map[string]int32{
	NamespaceEnv:      EnvInvalidString,
	NamespaceStd:      StdTableFull,
	NamespaceHTML:     HTMLGenericError,
	NamespaceNet:      NetRequestError,
	NamespaceJS:       JSEvaluationFailed,
	NamespaceCanvas:   CanvasInvalidResult,
	NamespaceDefaults: DefaultsFailedEncoding,
}

// CodeName returns the symbolic name of a negative code in ns.
func CodeName(ns string, code int32) string {
	names := codeNames[ns]
	i := int(-code) - 1
	if i < 0 || i >= len(names) {
		return "code(" + strconv.Itoa(int(code)) + ")"
	}
	return names[i]
}

// GenericCode returns the code ns uses for failures with no specific code:
// panics and resource table exhaustion.
func GenericCode(ns string) int32 {
	if code, ok := genericCodes[ns]; ok {
		return code
	}
	return -1
}

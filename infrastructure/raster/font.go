package raster

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"
)

// Font errors.
var (
	ErrInvalidFont    = errors.New("raster: invalid font")
	ErrFontLoadFailed = errors.New("raster: font loading is not supported")
)

// Weight is the system font weight enum.
type Weight int32

const (
	WeightUltraLight Weight = iota
	WeightThin
	WeightLight
	WeightRegular
	WeightMedium
	WeightSemibold
	WeightBold
	WeightHeavy
	WeightBlack
)

var typefaces = map[string][]byte{
	"Go Regular":     goregular.TTF,
	"Go Medium":      gomedium.TTF,
	"Go Bold":        gobold.TTF,
	"Go Italic":      goitalic.TTF,
	"Go Bold Italic": gobolditalic.TTF,
	"Go Mono":        gomono.TTF,
	"Go Mono Bold":   gomonobold.TTF,
	"Go Smallcaps":   gosmallcaps.TTF,
}

// aliases maps lower-case family names to a typeface.
var aliases = map[string]string{
	"go":                 "Go Regular",
	"go regular":         "Go Regular",
	"go medium":          "Go Medium",
	"go bold":            "Go Bold",
	"go italic":          "Go Italic",
	"go bold italic":     "Go Bold Italic",
	"go mono":            "Go Mono",
	"go mono bold":       "Go Mono Bold",
	"go smallcaps":       "Go Smallcaps",
	"monospace":          "Go Mono",
	"sans-serif":         "Go Regular",
	"serif":              "Go Regular",
	"system-ui":          "Go Regular",
	"helvetica":          "Go Regular",
	"helvetica neue":     "Go Regular",
	"helvetica-bold":     "Go Bold",
	"helveticaneue-bold": "Go Bold",
}

var (
	parsedMu sync.Mutex
	parsed   = map[string]*opentype.Font{}
)

func parse(typeface string) (*opentype.Font, error) {
	parsedMu.Lock()
	defer parsedMu.Unlock()
	if f, ok := parsed[typeface]; ok {
		return f, nil
	}
	f, err := opentype.Parse(typefaces[typeface])
	if err != nil {
		return nil, errors.Join(ErrInvalidFont, err)
	}
	parsed[typeface] = f
	return f, nil
}

// Font is a parsed typeface. Faces are created per size on demand.
type Font struct {
	font  *opentype.Font
	faces map[float64]font.Face
	// Name is the resolved typeface.
	Name string
}

// NewFont returns the font for a family name. Unknown families fall back to
// Go Regular.
func NewFont(family string) (*Font, error) {
	typeface, ok := aliases[strings.ToLower(strings.TrimSpace(family))]
	if !ok {
		typeface = "Go Regular"
	}
	f, err := parse(typeface)
	if err != nil {
		return nil, err
	}
	return &Font{Name: typeface, font: f, faces: make(map[float64]font.Face)}, nil
}

// SystemFont returns the system font of weight w.
func SystemFont(w Weight) (*Font, error) {
	var family string
	switch {
	case w < WeightUltraLight || w > WeightBlack:
		return nil, fmt.Errorf("%w: weight %d", ErrInvalidFont, w)
	case w <= WeightRegular:
		family = "go regular"
	case w <= WeightSemibold:
		family = "go medium"
	default:
		family = "go bold"
	}
	return NewFont(family)
}

// LoadFont would fetch a font from a URL; the host does not support it.
func LoadFont(url string) (*Font, error) {
	return nil, fmt.Errorf("%w: %s", ErrFontLoadFailed, url)
}

// Face returns a face for size points.
func (f *Font) Face(size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %v", ErrInvalidFont, size)
	}
	if face, ok := f.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, errors.Join(ErrInvalidFont, err)
	}
	f.faces[size] = face
	return face, nil
}

// Drop releases cached faces.
func (f *Font) Drop() {
	for size, face := range f.faces {
		_ = face.Close()
		delete(f.faces, size)
	}
}

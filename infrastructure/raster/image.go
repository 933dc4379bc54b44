package raster

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"

	_ "golang.org/x/image/webp" // register decoder
)

// Image errors.
var (
	ErrInvalidImage   = errors.New("raster: invalid image")
	ErrInvalidSrcRect = errors.New("raster: source rectangle outside image")
)

// Image is a decoded bitmap.
type Image struct {
	img    image.Image
	Format string
}

// DecodeImage decodes PNG, JPEG, GIF or WebP data.
func DecodeImage(data []byte) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(ErrInvalidImage, err)
	}
	return &Image{img: img, Format: format}, nil
}

// NewImage wraps img.
func NewImage(img image.Image) *Image {
	return &Image{img: img, Format: "png"}
}

// Width returns the width in pixels.
func (i *Image) Width() int { return i.img.Bounds().Dx() }

// Height returns the height in pixels.
func (i *Image) Height() int { return i.img.Bounds().Dy() }

// Image returns the underlying bitmap.
func (i *Image) Image() image.Image { return i.img }

// EncodePNG returns the image as PNG bytes.
func (i *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// crop copies the rectangle (x, y, w, h) in image coordinates.
func (i *Image) crop(x, y, w, h float64) (image.Image, error) {
	b := i.img.Bounds()
	r := image.Rect(int(x), int(y), int(x+w), int(y+h)).Add(b.Min)
	if w <= 0 || h <= 0 || x < 0 || y < 0 || !r.In(b) {
		return nil, ErrInvalidSrcRect
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), i.img, r.Min, draw.Src)
	return dst, nil
}

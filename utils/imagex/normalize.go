// Package imagex normalizes uploaded report images before OCR.
//
// Any source encoding the process can decode (PNG, JPEG, GIF, BMP, TIFF,
// WebP) is converted to an opaque RGB PNG buffer. Transparent regions are
// flattened onto white so that text on transparent scans stays readable.
package imagex

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"reportvoice/core"
)

// Options tunes normalization. The zero value keeps the original size and colors.
type Options struct {
	// MaxDimension downsizes images whose width or height exceeds it. 0 disables resizing.
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
	// Grayscale drops color information after flattening.
	Grayscale bool `json:"grayscale" yaml:"grayscale"`
}

// Normalized is a decoded, flattened and re-encoded image.
type Normalized struct {
	PNG          []byte
	SourceFormat string
	Width        int
	Height       int
}

// Normalize decodes data and re-encodes it as an opaque PNG.
// Empty input yields core.ErrInvalidInput.
func Normalize(data []byte, opts Options) (*Normalized, error) {
	if len(data) == 0 {
		return nil, core.ErrInvalidInput
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagex: unrecognized image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imagex: decode %s: %w", format, err)
	}

	out := flatten(img)

	if opts.MaxDimension > 0 {
		b := out.Bounds()
		if b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension {
			out = imaging.Fit(out, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
		}
	}
	if opts.Grayscale {
		out = imaging.Grayscale(out)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imagex: encode png: %w", err)
	}

	b := out.Bounds()
	return &Normalized{
		PNG:          buf.Bytes(),
		SourceFormat: format,
		Width:        b.Dx(),
		Height:       b.Dy(),
	}, nil
}

// flatten composites img over an opaque white canvas of the same size.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// Package imaging shrinks uploaded product images into inline JPEG data URIs.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const dataURIPrefix = "data:image/jpeg;base64,"

// DefaultMaxPixels bounds the decoded size of an upload when Options.MaxPixels is unset
const DefaultMaxPixels = 16 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned when the upload is not a decodable image
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooManyPixels is returned before decoding images whose canvas is too large
	ErrTooManyPixels = errors.New("image dimensions too large")
)

// Options controls the re-encoding
type Options struct {
	MaxDimension int
	Quality      int
	MaxPixels    int
}

// Result is a compressed image ready to be stored inline
type Result struct {
	DataURI string
	Width   int
	Height  int
	Bytes   int
}

// Fit scales (w, h) so the longer side is at most max, keeping the aspect ratio.
// Images already within bounds are returned unchanged.
func Fit(w, h, max int) (int, int) {
	if max <= 0 {
		return w, h
	}
	if w > h {
		if w > max {
			h = h * max / w
			w = max
		}
	} else if h > max {
		w = w * max / h
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Compress decodes data, downscales it and re-encodes it as JPEG. The header
// is checked against opts.MaxPixels before any pixel data is decoded.
func Compress(data []byte, opts Options) (*Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	b := src.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), opts.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; transparent areas become white
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode %s as jpeg: %w", format, err)
	}

	return &Result{
		DataURI: dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   w,
		Height:  h,
		Bytes:   buf.Len(),
	}, nil
}

// Package imagecodec re-encodes meal photos into the base64 JPEG payload
// that every vision provider accepts.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	// Decoders for the formats accepted on upload.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/vbonduro/nutriai/internal/domain"
)

// MimeType is the media type of every encoded payload.
const MimeType = "image/jpeg"

// DefaultMaxPixels bounds the decoded size of an image when Encoder.MaxPixels is unset.
const DefaultMaxPixels = 40_000_000

// Encoder re-encodes images as JPEG. MaxDimension bounds the longest edge in
// pixels; zero disables downscaling. MaxPixels bounds width*height as declared
// by the image header, checked before any pixel data is decoded.
type Encoder struct {
	Quality      int
	MaxDimension int
	MaxPixels    int
}

// Encode decodes r and returns the base64 JPEG at the given quality.
func Encode(r io.Reader, quality int) (string, error) {
	return Encoder{Quality: quality}.Encode(r)
}

func (e Encoder) Encode(r io.Reader) (string, error) {
	data, err := e.EncodeBytes(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeBytes returns the raw JPEG bytes before base64 encoding.
func (e Encoder) EncodeBytes(r io.Reader) ([]byte, error) {
	if e.Quality < 0 || e.Quality > 100 {
		return nil, &domain.EncodeError{Err: fmt.Errorf("quality %d outside [0,100]", e.Quality)}
	}

	// DecodeConfig reads only the header; replay what it consumed for Decode.
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, &domain.ImageDecodeError{Err: err}
	}
	if err := e.checkSize(cfg); err != nil {
		return nil, &domain.ImageDecodeError{Err: err}
	}

	img, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, &domain.ImageDecodeError{Err: err}
	}

	img = e.fit(img)

	// jpeg.Encode clamps quality to [1,100].
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, &domain.EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}

func (e Encoder) checkSize(cfg image.Config) error {
	limit := e.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, limit)
	}
	return nil
}

// fit scales img down so its longest edge is at most MaxDimension.
func (e Encoder) fit(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if e.MaxDimension <= 0 || longest <= e.MaxDimension {
		return img
	}

	nw := max(1, w*e.MaxDimension/longest)
	nh := max(1, h*e.MaxDimension/longest)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

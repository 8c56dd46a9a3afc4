package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Downscale returns img resized to maxWidth, keeping the aspect ratio. Images
// already within bounds, or a non-positive maxWidth, are returned unchanged.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// DownscalePNG decodes a PNG, downscales it and re-encodes it.
func DownscalePNG(data []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		return data, nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Dx() <= maxWidth {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Downscale(img, maxWidth)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

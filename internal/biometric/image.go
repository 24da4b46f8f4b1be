package biometric

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	_ "image/jpeg"
)

var (
	ErrImageTooLarge = errors.New("image exceeds maximum allowed size")
	ErrBadImage      = errors.New("image could not be decoded")
)

// DefaultMaxImageBytes caps the raw upload accepted for extraction. The
// upstream design left this unbounded; 8 MiB comfortably fits any webcam
// frame while keeping a hostile upload from tying up the encoder.
const DefaultMaxImageBytes = 8 << 20

// NormalizeImage decodes a PNG or JPEG capture, drops the alpha channel
// (only the first three color channels ever reach the encoder), and
// re-encodes the result as PNG for transport.
func NormalizeImage(raw []byte, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(raw) > maxBytes {
		return nil, ErrImageTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	bounds := src.Bounds()
	rgb := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := rgb.PixOffset(x, y)
			// Keep the color channels exactly as stored; alpha is
			// discarded, not composited.
			if n, ok := src.(*image.NRGBA); ok {
				j := n.PixOffset(x, y)
				rgb.Pix[i+0] = n.Pix[j+0]
				rgb.Pix[i+1] = n.Pix[j+1]
				rgb.Pix[i+2] = n.Pix[j+2]
			} else {
				r, g, b, _ := src.At(x, y).RGBA()
				rgb.Pix[i+0] = uint8(r >> 8)
				rgb.Pix[i+1] = uint8(g >> 8)
				rgb.Pix[i+2] = uint8(b >> 8)
			}
			rgb.Pix[i+3] = 0xff
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, rgb); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

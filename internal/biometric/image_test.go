package biometric

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngWithAlpha(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	img.SetNRGBA(0, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 0, G: 0, B: 0, A: 64})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeImageDropsAlpha(t *testing.T) {
	out, err := NormalizeImage(pngWithAlpha(t), 0)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// Color channels survive untouched, alpha is discarded rather than
	// composited into them.
	r, g, b, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(200), r>>8)
	assert.Equal(t, uint32(100), g>>8)
	assert.Equal(t, uint32(50), b>>8)
	assert.Equal(t, uint32(255), a>>8)

	r, g, b, _ = decoded.At(1, 0).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
	assert.Equal(t, uint32(30), b>>8)
}

func TestNormalizeImageTooLarge(t *testing.T) {
	raw := pngWithAlpha(t)
	_, err := NormalizeImage(raw, len(raw)-1)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestNormalizeImageUndecodable(t *testing.T) {
	_, err := NormalizeImage([]byte("definitely not an image"), 0)
	assert.ErrorIs(t, err, ErrBadImage)
}

// -- internal/browser/screenshot_test.go --
package browser

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyPNG builds a PNG that compresses poorly so its encoded size stays
// comfortably above small byte limits.
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			img.Set(x, y, color.RGBA{uint8(seed), uint8(seed >> 8), uint8(seed >> 16), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOptimizeScreenshot_SmallPNGPassesThrough(t *testing.T) {
	raw := noisyPNG(t, 40, 40)

	out, mime, err := OptimizeScreenshot(raw, len(raw)+1)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, raw, out)
}

func TestOptimizeScreenshot_NoLimitPassesThrough(t *testing.T) {
	raw := noisyPNG(t, 40, 40)

	out, mime, err := OptimizeScreenshot(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, raw, out)
}

func TestOptimizeScreenshot_OversizedBecomesScaledJPEG(t *testing.T) {
	raw := noisyPNG(t, 300, 200)
	require.Greater(t, len(raw), 10_000)

	out, mime, err := OptimizeScreenshot(raw, 10_000)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Less(t, len(out), len(raw))

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 133, img.Bounds().Dy())
}

func TestOptimizeScreenshot_NonPNGPassesThrough(t *testing.T) {
	raw := []byte("definitely not an image, but oversized for the limit")

	out, mime, err := OptimizeScreenshot(raw, 4)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, raw, out)
}

func TestDownscale_MinimumOnePixel(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	dst := downscale(src, downscaleNum, downscaleDen)
	assert.Equal(t, 1, dst.Bounds().Dx())
	assert.Equal(t, 1, dst.Bounds().Dy())
}

// -- internal/browser/screenshot.go --
package browser

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

const (
	jpegQuality = 78
	// downscaleNum/downscaleDen is the linear scale applied to oversized
	// captures before JPEG re-encoding.
	downscaleNum = 2
	downscaleDen = 3
)

// OptimizeScreenshot keeps small PNG captures as-is and converts oversized
// ones into a downscaled JPEG, returning the bytes and their MIME type.
// Vision models do not need lossless full-resolution input, and oversized
// inline payloads burn the token budget.
func OptimizeScreenshot(raw []byte, maxBytes int) ([]byte, string, error) {
	if maxBytes <= 0 || len(raw) <= maxBytes {
		return raw, "image/png", nil
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		// Not a PNG we can rework; pass through untouched.
		return raw, "image/png", nil
	}

	scaled := downscale(img, downscaleNum, downscaleDen)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to re-encode screenshot: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// downscale resizes by num/den with nearest-neighbor sampling. Quality loss is
// acceptable for model input.
func downscale(src image.Image, num, den int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx() * num / den
	h := bounds.Dy() * num / den
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*den/num
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*den/num
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

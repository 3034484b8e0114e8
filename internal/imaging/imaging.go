package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers webp decoding
)

const jpegQuality = 88

// HasAlpha decodes the image at path and scans every pixel for transparency.
// Corner/center sampling misses interior transparency, so the full scan is
// the authoritative check.
func HasAlpha(path string) (bool, error) {
	img, _, err := Decode(path)
	if err != nil {
		return false, err
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque(), nil
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true, nil
			}
		}
	}
	return false, nil
}

// Decode reads a PNG, JPEG, or WebP file and reports the detected format name.
func Decode(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, format, nil
}

// Scale resamples src to the given pixel size with Catmull-Rom interpolation.
func Scale(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Encode writes img to path in the format implied by the extension. WebP
// encoding is not available; callers drop sizes they cannot materialize.
func Encode(path string, img image.Image) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(f, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("unsupported encode format: %s", filepath.Ext(path))
	}
}

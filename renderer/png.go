package renderer

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// Write img to path as a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("renderer: could not create %s: %w", path, err)
	}

	if err = png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("renderer: could not encode %s: %w", path, err)
	}
	return f.Close()
}

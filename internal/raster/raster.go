// Package raster post-processes converted figures so no side exceeds the
// configured maximum dimension.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/spf13/afero"
	"golang.org/x/image/draw"

	"git.home.luguber.info/inful/postbuilder/internal/util/fsutil"
)

// ErrNotPNG is returned when a file does not decode as PNG.
var ErrNotPNG = errors.New("not a PNG image")

// Size is the pixel size of an image.
type Size struct {
	Width  int
	Height int
}

// Fit returns the largest size with the same aspect ratio whose sides are
// both at most maxDim. Sizes already within bounds are returned unchanged.
func (s Size) Fit(maxDim int) Size {
	if maxDim <= 0 || (s.Width <= maxDim && s.Height <= maxDim) {
		return s
	}
	if s.Width >= s.Height {
		return Size{Width: maxDim, Height: max(1, s.Height*maxDim/s.Width)}
	}
	return Size{Width: max(1, s.Width*maxDim/s.Height), Height: maxDim}
}

// Bound decodes the PNG at path and, if either side exceeds maxDim,
// downscales it with Catmull-Rom and rewrites it atomically. It returns the
// final size.
func Bound(fs afero.Fs, path string, maxDim int) (Size, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Size{}, fmt.Errorf("read %s: %w", path, err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Size{}, fmt.Errorf("%w: %s: %w", ErrNotPNG, path, err)
	}

	bounds := img.Bounds()
	current := Size{Width: bounds.Dx(), Height: bounds.Dy()}
	target := current.Fit(maxDim)
	if target == current {
		return current, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Size{}, fmt.Errorf("encode png: %w", err)
	}
	if err := fsutil.WriteFileAtomic(fs, path, buf.Bytes(), 0o644); err != nil {
		return Size{}, err
	}
	return target, nil
}

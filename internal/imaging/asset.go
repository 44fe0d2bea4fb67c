// Package imaging prepares short-lived, size-bounded PNG copies of source
// images for captioning backends.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Asset is a temporary normalized copy of a source image.
// It must be released once the backend call returns.
type Asset struct {
	Path   string
	Source string
	Width  int
	Height int

	once sync.Once
	err  error
}

// Release deletes the temporary file. It is safe to call more than once and on a nil Asset.
func (a *Asset) Release() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.err = fmt.Errorf("failed to remove temporary asset: %w", err)
		}
	})
	return a.err
}

// Preparer decodes, downsizes and re-encodes images into temporary PNG files.
type Preparer struct {
	maxSize int
	tempDir string
}

// NewPreparer creates a Preparer.
// Parameters:
//   - maxSize: upper bound for the longest side in pixels; smaller images keep their size.
//   - tempDir: directory for temporary files; empty uses os.TempDir.
//
// Returns:
//   - *Preparer: initialized preparer.
func NewPreparer(maxSize int, tempDir string) *Preparer {
	return &Preparer{maxSize: maxSize, tempDir: tempDir}
}

// Prepare writes a normalized copy of srcPath and returns it as an Asset.
// The source file is never modified.
func (p *Preparer) Prepare(ctx context.Context, srcPath string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", srcPath, err)
	}

	dst := p.normalize(src)

	out, err := os.CreateTemp(p.tempDir, "llavacap-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary asset: %w", err)
	}
	asset := &Asset{
		Path:   out.Name(),
		Source: srcPath,
		Width:  dst.Bounds().Dx(),
		Height: dst.Bounds().Dy(),
	}

	if err := png.Encode(out, dst); err != nil {
		out.Close()
		asset.Release()
		return nil, fmt.Errorf("failed to encode temporary asset: %w", err)
	}
	if err := out.Close(); err != nil {
		asset.Release()
		return nil, fmt.Errorf("failed to write temporary asset: %w", err)
	}

	return asset, nil
}

// normalize converts src to RGBA, scaling it down so the longest side fits maxSize.
func (p *Preparer) normalize(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), p.maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// ScaledSize returns the dimensions of a w×h image fitted inside a maxSize square,
// preserving aspect ratio. Images already within bounds are returned unchanged.
func ScaledSize(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		nh := h * maxSize / w
		if nh < 1 {
			nh = 1
		}
		return maxSize, nh
	}
	nw := w * maxSize / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSize
}

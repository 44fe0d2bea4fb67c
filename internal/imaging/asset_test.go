package imaging

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	return cfg.Width, cfg.Height
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"within bounds", 640, 480, 1024, 640, 480},
		{"landscape", 2048, 1024, 1024, 1024, 512},
		{"portrait", 1000, 3000, 1500, 500, 1500},
		{"square", 4000, 4000, 1000, 1000, 1000},
		{"extreme ratio keeps one pixel", 5000, 2, 100, 100, 1},
		{"no limit", 5000, 5000, 0, 5000, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledSize(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestPrepare_ResizesIntoTempDir(t *testing.T) {
	srcDir, tmpDir := t.TempDir(), t.TempDir()
	src := filepath.Join(srcDir, "big.png")
	writePNG(t, src, 300, 150)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	asset, err := NewPreparer(100, tmpDir).Prepare(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, tmpDir, filepath.Dir(asset.Path))
	assert.Equal(t, src, asset.Source)
	assert.Equal(t, 100, asset.Width)
	assert.Equal(t, 50, asset.Height)
	w, h := decodeSize(t, asset.Path)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source image must not change")

	require.NoError(t, asset.Release())
	assert.NoFileExists(t, asset.Path)
	require.NoError(t, asset.Release(), "second release is a no-op")
}

func TestPrepare_ConvertsJPEGToPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 20, 10)), nil))
	require.NoError(t, f.Close())

	asset, err := NewPreparer(1024, dir).Prepare(context.Background(), src)
	require.NoError(t, err)
	defer asset.Release()

	w, h := decodeSize(t, asset.Path)
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)
}

func TestPrepare_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, 4, 4)
	p := NewPreparer(1024, dir)

	a1, err := p.Prepare(context.Background(), src)
	require.NoError(t, err)
	defer a1.Release()
	a2, err := p.Prepare(context.Background(), src)
	require.NoError(t, err)
	defer a2.Release()

	assert.NotEqual(t, a1.Path, a2.Path)
}

func TestPrepare_Failures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	tmpDir := t.TempDir()
	p := NewPreparer(1024, tmpDir)

	_, err := p.Prepare(context.Background(), garbage)
	assert.Error(t, err)

	_, err = p.Prepare(context.Background(), filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed preparations leave no temporary files")
}

func TestRelease_Nil(t *testing.T) {
	var a *Asset
	assert.NoError(t, a.Release())
}

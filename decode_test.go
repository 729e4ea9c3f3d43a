package fastimage

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRequestFile(t *testing.T, req *ImageRequest, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(req.Path()), 0o700))
	require.NoError(t, os.WriteFile(req.Path(), data, 0o600))
}

func TestImageLoaderDecodes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))))

	req := newRequest(t.TempDir(), "https://example.com/x.png", SpecOriginal)
	writeRequestFile(t, req, buf.Bytes())

	(&imageLoader{}).Load(req)

	require.NoError(t, req.Err())
	require.NotNil(t, req.Image())
	assert.Equal(t, 20, req.Image().Bounds().Dx())
	assert.Equal(t, 10, req.Image().Bounds().Dy())
}

func TestImageLoaderFitsToSpec(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 50))))

	req := newRequest(t.TempDir(), "https://example.com/x.png", Spec{Name: "thumb", MaxWidth: 10})
	writeRequestFile(t, req, buf.Bytes())

	(&imageLoader{}).Load(req)

	require.NoError(t, req.Err())
	require.NotNil(t, req.Image())
	assert.Equal(t, 10, req.Image().Bounds().Dx())
	assert.Equal(t, 5, req.Image().Bounds().Dy())
}

func TestImageLoaderCorruptEntry(t *testing.T) {
	t.Parallel()

	req := newRequest(t.TempDir(), "https://example.com/bad.png", SpecOriginal)
	writeRequestFile(t, req, []byte("not an image"))

	(&imageLoader{}).Load(req)

	assert.Nil(t, req.Image())
	require.Error(t, req.Err())
}

func TestImageLoaderMissingFile(t *testing.T) {
	t.Parallel()

	req := newRequest(t.TempDir(), "https://example.com/gone.png", SpecOriginal)
	(&imageLoader{}).Load(req)

	assert.Nil(t, req.Image())
	require.Error(t, req.Err())
}

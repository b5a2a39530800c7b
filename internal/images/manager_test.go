package images

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"wholesale_catalog/internal/model"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.gif", "e.WebP"} {
		assert.True(t, Allowed(name), name)
	}
	for _, name := range []string{"a.bmp", "b", "c.png.exe", "d.svg"} {
		assert.False(t, Allowed(name), name)
	}
}

func TestSaveUsesCodeAndLowercaseExt(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs)

	name, err := m.Save("A0007", "Foto Producto.JPG", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, "A0007.jpg", name)

	data, err := afero.ReadFile(fs, "A0007.jpg")
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	_, err = m.Save("A0007", "script.sh", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = m.Save("../A0007", "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRemoveIsBestEffort(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs)
	require.NoError(t, afero.WriteFile(fs, "A0001.png", []byte("x"), 0o644))

	m.Remove(context.Background(), "A0001.png")
	m.Remove(context.Background(), "A0001.png")
	m.Remove(context.Background(), "")

	exists, err := afero.Exists(fs, "A0001.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs)
	require.NoError(t, afero.WriteFile(fs, "A0001.png", []byte("png"), 0o644))

	f, info, err := m.Open("A0001.png")
	require.NoError(t, err)
	defer f.Close()
	assert.EqualValues(t, 3, info.Size())

	_, _, err = m.Open("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, _, err = m.Open("A0002.png")
	assert.Error(t, err)
}

func TestBundle(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs)
	require.NoError(t, afero.WriteFile(fs, "A0001.PNG", []byte("one"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "A0002.jpg", []byte("two"), 0o644))

	var buf bytes.Buffer
	n, err := m.Bundle(context.Background(), &buf, []model.ImageRef{
		{Codigo: "A0001", Imagen: "A0001.PNG"},
		{Codigo: "A0002", Imagen: "A0002.jpg"},
		{Codigo: "A0003", Imagen: "A0003.gif"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		got[f.Name] = string(b)
	}
	assert.Equal(t, map[string]string{"A0001.png": "one", "A0002.jpg": "two"}, got)
}

func TestBundleEmpty(t *testing.T) {
	m := NewManager(afero.NewMemMapFs())
	var buf bytes.Buffer
	n, err := m.Bundle(context.Background(), &buf, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}

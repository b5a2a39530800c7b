// Package images stores product pictures under their catalog code.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"wholesale_catalog/internal/model"
	"wholesale_catalog/pkg/logger"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

var (
	ErrUnsupportedType = errors.New("tipo de archivo no permitido")
	ErrInvalidName     = errors.New("nombre de archivo inválido")
)

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Manager owns the upload folder. All names it handles are bare filenames
// relative to that folder.
type Manager struct {
	fs afero.Fs
}

// NewManager wraps fs, which must already be rooted at the upload folder.
func NewManager(fs afero.Fs) *Manager {
	return &Manager{fs: fs}
}

// NewDiskManager creates dir if needed and serves it through a base-path fs.
func NewDiskManager(dir string) (*Manager, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return NewManager(afero.NewBasePathFs(osFs, dir)), nil
}

// Allowed reports whether filename has an accepted image extension.
func Allowed(filename string) bool {
	return allowedExt[strings.ToLower(path.Ext(filename))]
}

// StoredName is the on-disk name for an upload: code plus the lowercased
// extension of the original file.
func StoredName(code, originalName string) string {
	return code + strings.ToLower(path.Ext(originalName))
}

// Save writes src as <code><ext>, replacing any file of the same name.
func (m *Manager) Save(code, originalName string, src io.Reader) (string, error) {
	if !Allowed(originalName) {
		return "", ErrUnsupportedType
	}
	name := StoredName(code, originalName)
	if !validName(name) {
		return "", ErrInvalidName
	}
	if err := afero.WriteReader(m.fs, name, src); err != nil {
		return "", fmt.Errorf("write image %s: %w", name, err)
	}
	return name, nil
}

// Remove deletes name best-effort: failures are logged, never returned.
func (m *Manager) Remove(ctx context.Context, name string) {
	if name == "" || !validName(name) {
		return
	}
	if err := m.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn(ctx, "remove image failed", "file", name, "error", err)
	}
}

// Open returns the named image for serving.
func (m *Manager) Open(name string) (afero.File, os.FileInfo, error) {
	if !validName(name) || !Allowed(name) {
		return nil, nil, ErrInvalidName
	}
	f, err := m.fs.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, os.ErrNotExist
	}
	return f, info, nil
}

// Bundle zips the referenced images, each renamed to <code><ext>. Files that
// are missing on disk are skipped. It returns how many entries were written.
func (m *Manager) Bundle(ctx context.Context, w io.Writer, refs []model.ImageRef) (int, error) {
	zw := zip.NewWriter(w)
	added := 0
	seen := map[string]bool{}
	for _, ref := range refs {
		if !validName(ref.Imagen) {
			continue
		}
		entry := StoredName(ref.Codigo, ref.Imagen)
		if seen[entry] {
			continue
		}
		ok, err := m.addToZip(zw, ref.Imagen, entry)
		if err != nil {
			_ = zw.Close()
			return added, err
		}
		if !ok {
			logger.Debug(ctx, "image missing, left out of bundle", "file", ref.Imagen)
			continue
		}
		seen[entry] = true
		added++
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("close zip: %w", err)
	}
	return added, nil
}

func (m *Manager) addToZip(zw *zip.Writer, name, entry string) (bool, error) {
	f, err := m.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	modified := time.Now()
	if info, err := f.Stat(); err == nil {
		if info.IsDir() {
			return false, nil
		}
		modified = info.ModTime()
	}
	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return false, fmt.Errorf("zip entry %s: %w", entry, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return false, fmt.Errorf("zip copy %s: %w", name, err)
	}
	return true, nil
}

// validName accepts bare filenames only.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

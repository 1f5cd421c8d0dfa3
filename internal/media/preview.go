package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const defaultPreviewSize = 256

// Previewer creates and releases local preview handles for staged images.
type Previewer interface {
	Create(ctx context.Context, name string, open func() (io.ReadCloser, error)) (string, error)
	Release(handle string) error
}

// ThumbnailPreviewer writes a bounded PNG thumbnail per image into Dir.
type ThumbnailPreviewer struct {
	Dir  string
	Size int
}

// NewThumbnailPreviewer creates dir if needed.
func NewThumbnailPreviewer(dir string, size int) (*ThumbnailPreviewer, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "fentro-console", "previews")
	}
	if size <= 0 {
		size = defaultPreviewSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &ThumbnailPreviewer{Dir: dir, Size: size}, nil
}

// Create decodes the image, fits it into Size×Size and returns the
// thumbnail's file name, which is the preview handle.
func (p *ThumbnailPreviewer) Create(ctx context.Context, name string, open func() (io.ReadCloser, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reader, err := open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer reader.Close()

	src, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", name, err)
	}
	thumbnail := imaging.Fit(src, p.Size, p.Size, imaging.Lanczos)

	handle := "preview-" + uuid.NewString() + ".png"
	if err := imaging.Save(thumbnail, filepath.Join(p.Dir, handle)); err != nil {
		return "", fmt.Errorf("failed to save preview for %s: %w", name, err)
	}
	return handle, nil
}

// Path resolves a handle inside Dir.
func (p *ThumbnailPreviewer) Path(handle string) (string, error) {
	if handle == "" || filepath.Base(handle) != handle {
		return "", errors.New("media: invalid preview handle")
	}
	return filepath.Join(p.Dir, handle), nil
}

// Release deletes the thumbnail; missing files are not an error.
func (p *ThumbnailPreviewer) Release(handle string) error {
	path, err := p.Path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

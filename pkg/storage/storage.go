// Package storage persists exported feature images on local disk or in an
// S3-compatible bucket.
//
// Images live at "images/{id}.fimg" in the binary format written by
// chroma.FeatureImage.WriteTo, so an image exported by one host can be
// re-rendered by another.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
)

// FileStore reads and writes whole files.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations are safe for concurrent use.
type FileStore interface {
	// Read opens path. Missing files yield an error wrapping os.ErrNotExist.
	// The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write truncates or creates path. Data is committed on Close.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes path. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)
}

// ErrInvalidID is returned for image IDs that would escape the images
// directory.
var ErrInvalidID = errors.New("storage: invalid image id")

// ImagePath returns the storage path of the image with id.
func ImagePath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return path.Join("images", id+".fimg"), nil
}

// SaveImage writes img under id and returns its path.
func SaveImage(ctx context.Context, fs FileStore, id string, img *chroma.FeatureImage) (string, error) {
	p, err := ImagePath(id)
	if err != nil {
		return "", err
	}
	w, err := fs.Write(ctx, p)
	if err != nil {
		return "", fmt.Errorf("storage: save %s: %w", p, err)
	}
	if _, err := img.WriteTo(w); err != nil {
		w.Close()
		return "", fmt.Errorf("storage: save %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: save %s: %w", p, err)
	}
	return p, nil
}

// LoadImage reads the image stored under id.
func LoadImage(ctx context.Context, fs FileStore, id string) (*chroma.FeatureImage, error) {
	p, err := ImagePath(id)
	if err != nil {
		return nil, err
	}
	r, err := fs.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, err := chroma.ReadImage(r)
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", p, err)
	}
	return img, nil
}

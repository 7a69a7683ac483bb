package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/cp"

	"github.com/versafe/versafe-core/internal/idgen"
)

// Local implements Store on the local file system rooted at dir
// (UPLOAD_DIR). Writes land in a temp file first and are moved into place
// with cp.CopyFile + rename so a reader never observes a partially
// written document.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) pathFor(ref string) string {
	return filepath.Join(l.dir, ref)
}

func (l *Local) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	ref := idgen.New().String()
	tmp, err := os.CreateTemp(l.dir, "upload-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		return "", 0, fmt.Errorf("filestore: write temp file: %w", err)
	}
	if closeErr != nil {
		return "", 0, fmt.Errorf("filestore: close temp file: %w", closeErr)
	}

	finalPath := l.pathFor(ref)
	partPath := finalPath + ".part"
	if err := cp.CopyFile(partPath, tmpPath); err != nil {
		os.Remove(partPath)
		return "", 0, fmt.Errorf("filestore: copy into place: %w", err)
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return "", 0, fmt.Errorf("filestore: rename into place: %w", err)
	}
	return ref, size, nil
}

func (l *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(l.pathFor(ref))
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", ref, err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	err := os.Remove(l.pathFor(ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: delete %s: %w", ref, err)
	}
	return nil
}

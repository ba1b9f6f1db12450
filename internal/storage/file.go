package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bher20/tariffmanager/internal/metrics"
)

// FileStorage keeps documents as files below a root directory, one file per
// key. Writes are atomic (temp file + rename).
type FileStorage struct {
	root string
}

func NewFile(root string) (*FileStorage, error) {
	if root == "" {
		root = "data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{root: root}, nil
}

func (f *FileStorage) Close() error { return nil }

func (f *FileStorage) Ping(ctx context.Context) error {
	_, err := os.Stat(f.root)
	return err
}

func (f *FileStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *FileStorage) GetDocument(ctx context.Context, key string) (*Document, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return &Document{
		Key:         key,
		ContentType: contentTypeFor(key),
		Body:        body,
		UpdatedAt:   info.ModTime().UTC(),
	}, nil
}

func (f *FileStorage) PutDocument(ctx context.Context, doc Document) error {
	p, err := f.path(doc.Key)
	if err != nil {
		return err
	}
	if err := writeFileAtomically(p, bytes.NewReader(doc.Body)); err != nil {
		return err
	}
	metrics.DocumentWritesTotal.WithLabelValues("file").Inc()
	return nil
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(key, ".md") {
		return ContentTypeMarkdown
	}
	return ContentTypeJSON
}

func writeFileAtomically(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ Store = (*FileStorage)(nil)

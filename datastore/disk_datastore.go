package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type (
	DiskDataStore struct {
		rootPath string
	}
)

func NewDiskDataStore(rootPath string) (*DiskDataStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	dds := &DiskDataStore{
		rootPath: rootPath,
	}

	return dds, nil
}

func (dds *DiskDataStore) path(key string) (string, error) {
	p := filepath.Join(dds.rootPath, filepath.FromSlash(key))
	if !strings.HasPrefix(p, filepath.Clean(dds.rootPath)+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes the data store root", key)
	}
	return p, nil
}

func (dds *DiskDataStore) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := dds.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("error in os.Create: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return fmt.Errorf("error in io.Copy: %w", err)
	}
	logger.Debug().Str("key", key).Int64("bytes", n).Msg("wrote file to disk")
	return f.Close()
}

func (dds *DiskDataStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := dds.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error in os.Open: %w", err)
	}
	return f, nil
}

func (dds *DiskDataStore) Shutdown(context.Context) error {
	return nil
}

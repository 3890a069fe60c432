// Package storage persists uploaded contract files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid filename")
)

// ContractFile describes one stored upload.
type ContractFile struct {
	Filename  string  `json:"filename"`
	Size      int64   `json:"size"`
	CreatedAt float64 `json:"created_at"`
	Extension string  `json:"extension"`
}

// Store is implemented by the local directory and MinIO backends.
type Store interface {
	// Put copies the local file at src into the store under name.
	Put(ctx context.Context, name, src string) (*ContractFile, error)
	List(ctx context.Context) ([]ContractFile, error)
	Delete(ctx context.Context, name string) error
}

type Options struct {
	Backend string // local or minio
	Dir     string
	MinIO   MinIOOptions
}

// Open returns the configured backend. MinIO buckets are created on demand.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "local":
		return NewLocal(opts.Dir)
	case "minio":
		s, err := NewMinIO(opts.MinIO)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

// ValidateName rejects anything that is not a bare file name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") ||
		filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// sortFiles orders newest first, then by name.
func sortFiles(files []ContractFile) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt != files[j].CreatedAt {
			return files[i].CreatedAt > files[j].CreatedAt
		}
		return files[i].Filename < files[j].Filename
	})
}

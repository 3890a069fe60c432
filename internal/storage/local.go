package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Local keeps uploads as plain files in one directory.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("uploads dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Dir() string { return l.dir }

func (l *Local) Put(_ context.Context, name, src string) (*ContractFile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer in.Close()

	dst := filepath.Join(l.dir, name)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, err
	}
	return fileInfo(info), nil
}

func (l *Local) List(_ context.Context) ([]ContractFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	files := []ContractFile{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, *fileInfo(info))
	}
	sortFiles(files)
	return files, nil
}

func (l *Local) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

func fileInfo(info os.FileInfo) *ContractFile {
	return &ContractFile{
		Filename:  info.Name(),
		Size:      info.Size(),
		CreatedAt: unixSeconds(info.ModTime()),
		Extension: extension(info.Name()),
	}
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

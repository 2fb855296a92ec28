package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DiskStorage writes objects below BasePath and serves them from BaseURL.
type DiskStorage struct {
	BasePath  string
	BaseURL   string
	dirs      map[string]bool
	dirsMutex sync.Mutex
}

// NewDiskStorage creates a disk backend rooted at basePath.
func NewDiskStorage(basePath, baseURL string) *DiskStorage {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &DiskStorage{BasePath: basePath, BaseURL: baseURL, dirs: map[string]bool{}}
}

func (s *DiskStorage) createDir(dir string) error {
	s.dirsMutex.Lock()
	defer s.dirsMutex.Unlock()

	if s.dirs[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.dirs[dir] = true
	return nil
}

func (s *DiskStorage) fullPath(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.BasePath, filepath.FromSlash(cleaned)), nil
}

// Save writes r to disk, removing partial files on failure.
func (s *DiskStorage) Save(_ context.Context, name string, r io.Reader, _ string) error {
	fileName, err := s.fullPath(name)
	if err != nil {
		return err
	}
	if err := s.createDir(filepath.Dir(fileName)); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}
	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(fileName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return file.Close()
}

// Delete removes the file for name.
func (s *DiskStorage) Delete(_ context.Context, name string) error {
	fileName, err := s.fullPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fileName); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// URL returns BaseURL joined with name.
func (s *DiskStorage) URL(name string) string {
	if name == "" {
		return ""
	}
	return s.BaseURL + strings.TrimPrefix(name, "/")
}

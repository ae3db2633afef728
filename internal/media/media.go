// Package media stores processed upload files on local disk.
package media

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store writes and serves uploaded images under a single directory. Names are
// random, so a stored file never collides and never leaks the uploader.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes JPEG data under a fresh random name and returns that name.
func (s *Store) Save(data []byte) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating file name: %w", err)
	}
	name := hex.EncodeToString(buf) + ".jpg"

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("closing file after write error", "error", cerr)
		}
		if rerr := os.Remove(path); rerr != nil {
			slog.Error("removing file after write error", "error", rerr)
		}
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	return name, nil
}

// Open returns the stored file for a name previously returned by Save.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	path, err := s.safeJoin(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Store) Delete(name string) error {
	path, err := s.safeJoin(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// safeJoin resolves name under the store directory and rejects traversal.
func (s *Store) safeJoin(name string) (string, error) {
	absBase, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return absPath, nil
}

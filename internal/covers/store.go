// Package covers handles on-disk storage of uploaded cover images. Files are
// content-addressed through their md5 hash (stored on the Cover row); the
// store itself only knows about bytes and file names.
package covers

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// unsafeFilenameChars matches everything we refuse to put in a file name.
var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Upload describes a stored (or deduplicated) cover file.
type Upload struct {
	FileName string
	MimeType string
	MD5Hash  string
}

// Store persists cover files under a single directory.
type Store struct {
	dir string
}

// NewStore creates the uploads directory if needed and returns a store
// rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Describe computes the hash and sniffed mime type of uploaded bytes without
// writing anything. Callers use the hash to look for an existing Cover row
// before deciding to Save.
func (s *Store) Describe(data []byte, originalName string) Upload {
	sum := md5.Sum(data)
	return Upload{
		FileName: SanitizeFilename(originalName),
		MimeType: mimetype.Detect(data).String(),
		MD5Hash:  hex.EncodeToString(sum[:]),
	}
}

// Save writes the file to disk under its sanitized name.
func (s *Store) Save(upload Upload, data []byte) error {
	if upload.FileName == "" {
		return fmt.Errorf("empty cover file name")
	}
	path := filepath.Join(s.dir, upload.FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write cover file: %w", err)
	}
	return nil
}

// Remove deletes a stored cover file. A missing file is not an error; the
// sweep may already have reclaimed it.
func (s *Store) Remove(fileName string) error {
	if fileName == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, fileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cover file: %w", err)
	}
	return nil
}

// Exists reports whether a file is present in the store.
func (s *Store) Exists(fileName string) bool {
	if fileName == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, fileName))
	return err == nil
}

// List returns the file names currently on disk.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read uploads dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// SanitizeFilename reduces an uploaded file name to a safe basename. Path
// separators and shell-hostile characters are dropped entirely.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}

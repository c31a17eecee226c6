package store

import (
	"os"
	"path/filepath"
)

// Flag marks that at least one topic found new items during a run
type Flag interface {
	Raise() error
}

// FileFlag is an empty marker file. Only its existence matters, so raising
// it from several topics at once needs no lock.
type FileFlag struct {
	path string
}

// NewFileFlag creates a flag at path
func NewFileFlag(path string) *FileFlag {
	return &FileFlag{path: path}
}

// Raise creates the marker file if it does not exist
func (f *FileFlag) Raise() error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return file.Close()
}

// Raised reports whether the marker file exists
func (f *FileFlag) Raised() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

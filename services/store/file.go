package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// FileStore keeps one pretty-printed JSON array per topic in dir
type FileStore struct {
	dir string
}

// NewFileStore creates a file store. dir is created on first use.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the state file of topic
func (s *FileStore) Path(topic string) string {
	return filepath.Join(s.dir, topic+".json")
}

// Load reads the topic file, creating it as [] when missing
func (s *FileStore) Load(ctx context.Context, topic string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStore(topic, "load cancelled", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, apperrors.NewStore(topic, "could not create data directory "+s.dir, err)
	}

	path := s.Path(topic)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		created, ierr := s.initialize(path)
		if ierr != nil {
			return nil, apperrors.NewStore(topic, "could not create "+path, ierr)
		}
		if created {
			logger.ForStore().Info().Str("topic", topic).Str("path", path).Msg("Created empty seen set")
			return []string{}, nil
		}
		// Created concurrently, read what is there
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, apperrors.NewStoreCorrupt(topic, "could not read "+path, err)
	}

	set, err := decode(data)
	if err != nil {
		return nil, apperrors.NewStoreCorrupt(topic, "could not parse "+path, err)
	}
	return set, nil
}

// DiffAndSave merges candidates into the topic file
func (s *FileStore) DiffAndSave(ctx context.Context, topic string, candidates []string) ([]string, error) {
	seen, err := s.Load(ctx, topic)
	if err != nil {
		return nil, err
	}

	updated, newItems := merge(seen, candidates)
	if len(newItems) == 0 {
		return newItems, nil
	}

	data, err := encode(updated)
	if err != nil {
		return nil, apperrors.NewStore(topic, "could not encode seen set", err)
	}
	if err := writeFileAtomic(s.Path(topic), data); err != nil {
		return nil, apperrors.NewStore(topic, "could not save "+s.Path(topic), err)
	}

	logger.ForStore().Debug().
		Str("topic", topic).
		Int("new_items", len(newItems)).
		Int("total", len(updated)).
		Msg("Saved seen set")
	return newItems, nil
}

// initialize creates path holding an empty set without clobbering a file
// created in the meantime. It reports whether this call created the file.
func (s *FileStore) initialize(path string) (bool, error) {
	tmp, err := writeTemp(filepath.Dir(path), filepath.Base(path), []byte("[]"))
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, syncDir(filepath.Dir(path))
}

// writeFileAtomic replaces path with data through a synced temp file and a
// rename, so readers see either the old or the new contents. The directory
// is synced too, otherwise the rename may not survive a crash.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := writeTemp(filepath.Dir(path), filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(path))
}

// syncDir flushes a directory entry change such as a rename or link to disk
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func writeTemp(dir, base string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

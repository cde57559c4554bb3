package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Collection is a list of records persisted as a single JSON array file.
// SaveAll is the only operation that changes the file; adding records is a
// load-extend-save at the call site.
type Collection[T any] struct {
	path string
}

// NewCollection returns a collection backed by the file at path. The file is
// created lazily on first access.
func NewCollection[T any](path string) *Collection[T] {
	return &Collection[T]{path: path}
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string {
	return c.path
}

func (c *Collection[T]) ensureFile() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if _, err := os.Stat(c.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %s: %w", c.path, err)
	}
	if err := os.WriteFile(c.path, []byte("[]"), 0o644); err != nil {
		return fmt.Errorf("creating %s: %w", c.path, err)
	}
	log.Info().Str("file", c.path).Msg("created collection file")
	return nil
}

// FindAll loads every record. An unreadable or malformed file yields an empty
// list.
func (c *Collection[T]) FindAll() []T {
	if err := c.ensureFile(); err != nil {
		log.Error().Err(err).Msg("collection unavailable")
		return []T{}
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		log.Error().Err(err).Str("file", c.path).Msg("reading collection")
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		log.Error().Err(err).Str("file", c.path).Msg("malformed collection file, treating as empty")
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	log.Debug().Int("count", len(items)).Str("file", filepath.Base(c.path)).Msg("loaded collection")
	return items
}

// SaveAll overwrites the collection with items.
func (c *Collection[T]) SaveAll(items []T) error {
	if err := c.ensureFile(); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(c.path), err)
	}

	// Write to a sibling temp file and rename so a crash never leaves a
	// truncated collection behind.
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", c.path, err)
	}

	log.Debug().Int("count", len(items)).Str("file", filepath.Base(c.path)).Msg("saved collection")
	return nil
}

// Append loads the collection, appends items, and saves it back.
func (c *Collection[T]) Append(items []T) error {
	if len(items) == 0 {
		return nil
	}
	all := c.FindAll()
	all = append(all, items...)
	return c.SaveAll(all)
}

// Package store persists one workflow document per feature directory.
// Saves are atomic (write-then-rename) so a crash mid-write leaves
// either the previous or the fully-updated document, never a torn one.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shipway/internal/feature"
)

// DocumentName is the workflow document filename inside a feature directory.
const DocumentName = "workflow.yaml"

// Store reads and writes workflow documents.
type Store struct{}

// New creates a Store.
func New() *Store {
	return &Store{}
}

// Path returns the document path for a feature directory.
func (s *Store) Path(dir string) string {
	return filepath.Join(dir, DocumentName)
}

// Load reads and validates the workflow document in dir.
// A missing document returns ErrNotFound; a malformed one returns a
// *SchemaError listing every problem found.
func (s *Store) Load(dir string) (*feature.Document, error) {
	path := s.Path(dir)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read workflow document: %w", err)
	}

	var doc feature.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &SchemaError{Path: path, Problems: []string{"not valid YAML: " + err.Error()}}
	}

	if problems := doc.Problems(); len(problems) > 0 {
		return nil, &SchemaError{Path: path, Problems: problems}
	}

	return &doc, nil
}

// Save validates and persists the document atomically: the full new
// document is written to a temporary file in the same directory, synced,
// then renamed over the live file.
func (s *Store) Save(dir string, doc *feature.Document) error {
	if problems := doc.Problems(); len(problems) > 0 {
		return &SchemaError{Path: s.Path(dir), Problems: problems}
	}

	doc.Feature.LastUpdated = time.Now().UTC()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal workflow document: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure feature directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, DocumentName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp document: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(dir)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace workflow document: %w", err)
	}

	return nil
}

// Init creates a new document in dir, refusing to clobber an existing one.
func (s *Store) Init(dir string, doc *feature.Document) error {
	if _, err := os.Stat(s.Path(dir)); err == nil {
		return fmt.Errorf("workflow document already exists at %s", s.Path(dir))
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat workflow document: %w", err)
	}
	return s.Save(dir, doc)
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

// Package artifacts persists trained models in a Badger key-value store.
// Each model is stored under model:{dataset}:{name} as a gob blob with a
// JSON metadata record under meta:{dataset}:{name}. Snapshot files can be
// exported alongside for inspection and transport.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/quarrydev/quarry/internal/logging"
	"github.com/quarrydev/quarry/internal/metrics"
)

// Meta describes one stored model.
type Meta struct {
	Dataset     string    `json:"dataset"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	ProblemType string    `json:"problem_type"`
	Features    []string  `json:"features"`
	Scaled      bool      `json:"scaled"`
	Labels      []string  `json:"labels,omitempty"`
	Bytes       int       `json:"bytes"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store wraps a Badger database holding model blobs and metadata.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used by tests and dry runs.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory artifact store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func modelKey(dataset, name string) []byte {
	return []byte("model:" + dataset + ":" + name)
}

func metaKey(dataset, name string) []byte {
	return []byte("meta:" + dataset + ":" + name)
}

// Put stores a model blob and its metadata atomically.
func (s *Store) Put(meta Meta, blob []byte) error {
	meta.Bytes = len(blob)
	meta.StoredAt = time.Now().UTC()

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(modelKey(meta.Dataset, meta.Name), blob); err != nil {
			return err
		}
		return txn.Set(metaKey(meta.Dataset, meta.Name), metaBytes)
	})
	metrics.RecordArtifactOp("put", err)
	if err != nil {
		return fmt.Errorf("failed to store model %s/%s: %w", meta.Dataset, meta.Name, err)
	}

	metrics.ArtifactBytes.WithLabelValues(meta.Dataset).Observe(float64(len(blob)))
	logging.Debug().
		Str("dataset", meta.Dataset).
		Str("model", meta.Name).
		Int("bytes", len(blob)).
		Msg("Model stored")
	return nil
}

// Get returns the blob and metadata for one model.
func (s *Store) Get(dataset, name string) ([]byte, *Meta, error) {
	var blob []byte
	var meta Meta

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey(dataset, name))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(metaKey(dataset, name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	metrics.RecordArtifactOp("get", err)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model %s/%s: %w", dataset, name, err)
	}
	return blob, &meta, nil
}

// List returns metadata for stored models. An empty dataset lists all.
func (s *Store) List(dataset string) ([]Meta, error) {
	prefix := []byte("meta:")
	if dataset != "" {
		prefix = []byte("meta:" + dataset + ":")
	}

	var out []Meta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var meta Meta
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return err
			}
			out = append(out, meta)
		}
		return nil
	})
	metrics.RecordArtifactOp("list", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return out, nil
}

// Delete removes a model and its metadata.
func (s *Store) Delete(dataset, name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(modelKey(dataset, name)); err != nil {
			return err
		}
		return txn.Delete(metaKey(dataset, name))
	})
	metrics.RecordArtifactOp("delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete model %s/%s: %w", dataset, name, err)
	}
	return nil
}

// ExportSnapshot writes the blob to {dir}/{name}_{dataset}_model.model so
// trained models are inspectable outside the store.
func (s *Store) ExportSnapshot(dir, dataset, name string) (string, error) {
	blob, _, err := s.Get(dataset, name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, snapshotFileName(dataset, name))
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return path, nil
}

func snapshotFileName(dataset, name string) string {
	clean := func(s string) string {
		return strings.ReplaceAll(s, string(filepath.Separator), "_")
	}
	return fmt.Sprintf("%s_%s_model.model", clean(name), clean(dataset))
}

// Quarry - ML Pipeline and Model Serving Toolkit
// Copyright 2026 Quarry Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quarrydev/quarry

package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	blob := []byte("gob-encoded-model")
	meta := Meta{
		Dataset:     "iris",
		Name:        "random_forest",
		Kind:        "random_forest",
		ProblemType: "classification",
		Features:    []string{"sepal_length", "petal_width"},
		Labels:      []string{"setosa", "versicolor", "virginica"},
	}

	require.NoError(t, s.Put(meta, blob))

	got, gotMeta, err := s.Get("iris", "random_forest")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Equal(t, "random_forest", gotMeta.Kind)
	assert.Equal(t, len(blob), gotMeta.Bytes)
	assert.False(t, gotMeta.StoredAt.IsZero())
	assert.Equal(t, meta.Labels, gotMeta.Labels)
}

func TestGetMissingModel(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Get("iris", "nope")
	require.Error(t, err)
}

func TestListFiltersByDataset(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(Meta{Dataset: "iris", Name: "knn"}, []byte("a")))
	require.NoError(t, s.Put(Meta{Dataset: "iris", Name: "random_forest"}, []byte("b")))
	require.NoError(t, s.Put(Meta{Dataset: "wine", Name: "knn"}, []byte("c")))

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	iris, err := s.List("iris")
	require.NoError(t, err)
	assert.Len(t, iris, 2)
	for _, m := range iris {
		assert.Equal(t, "iris", m.Dataset)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(Meta{Dataset: "iris", Name: "knn"}, []byte("a")))
	require.NoError(t, s.Delete("iris", "knn"))

	_, _, err := s.Get("iris", "knn")
	require.Error(t, err)

	list, err := s.List("iris")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExportSnapshot(t *testing.T) {
	s := newTestStore(t)
	blob := []byte("model-bytes")
	require.NoError(t, s.Put(Meta{Dataset: "wine", Name: "linear_regression"}, blob))

	dir := t.TempDir()
	path, err := s.ExportSnapshot(dir, "wine", "linear_regression")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "linear_regression_wine_model.model"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, blob, data)
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(Meta{Dataset: "iris", Name: "knn"}, []byte("persisted")))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck

	blob, _, err := s2.Get("iris", "knn")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), blob)
}

package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genolytics/labmetrics/pkg/api/reportstore"
	"github.com/genolytics/labmetrics/pkg/config"
)

func setupIndexer(t *testing.T, reportsDir string) (*indexer, reportstore.Store) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	store := reportstore.NewStore(log, &config.APIDatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() { _ = store.Stop() })

	idx, ok := NewIndexer(log, store, reportsDir, time.Minute, 2).(*indexer)
	require.True(t, ok)

	return idx, store
}

func writeReport(t *testing.T, dir, id, body string) string {
	t.Helper()

	path := filepath.Join(dir, "report-"+id+".json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestIndexReportsDir(t *testing.T) {
	dir := t.TempDir()
	idx, store := setupIndexer(t, dir)
	ctx := context.Background()

	writeReport(t, dir, "aaa", `{
		"id": "aaa",
		"generated_at": "2025-06-01T12:00:00Z",
		"total_checks": 100,
		"total_runs": 80,
		"billable_count": 60,
		"usage_count": 70
	}`)
	writeReport(t, dir, "bbb", `{
		"id": "bbb",
		"generated_at": "2025-06-02T12:00:00Z",
		"billable_count": 5,
		"usage_count": 5
	}`)

	// Non-report files are ignored.
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "notes.txt"), []byte("x"), 0o644,
	))

	require.NoError(t, idx.indexReportsDir(ctx))

	snaps, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "bbb", snaps[0].ID)

	got, err := store.GetSnapshot(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, 60, got.BillableCount)
	assert.Equal(t, 100, got.TotalChecks)
	assert.Contains(t, got.Payload, `"id": "aaa"`)
	assert.Nil(t, got.ReindexedAt)
}

func TestIndexReportsDir_SkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	idx, store := setupIndexer(t, dir)
	ctx := context.Background()

	writeReport(t, dir, "aaa", `{"id":"aaa","generated_at":"2025-06-01T12:00:00Z"}`)
	require.NoError(t, idx.indexReportsDir(ctx))

	first, err := store.GetSnapshot(ctx, "aaa")
	require.NoError(t, err)

	// A second pass with an unchanged file leaves the snapshot alone.
	require.NoError(t, idx.indexReportsDir(ctx))

	second, err := store.GetSnapshot(ctx, "aaa")
	require.NoError(t, err)
	assert.True(t, second.IndexedAt.Equal(first.IndexedAt))
	assert.Nil(t, second.ReindexedAt)
}

func TestIndexReportsDir_ReindexesChanged(t *testing.T) {
	dir := t.TempDir()
	idx, store := setupIndexer(t, dir)
	ctx := context.Background()

	path := writeReport(t, dir, "aaa",
		`{"id":"aaa","generated_at":"2025-06-01T12:00:00Z","billable_count":1}`)
	require.NoError(t, idx.indexReportsDir(ctx))

	// Rewrite the file with a newer mtime.
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"id":"aaa","generated_at":"2025-06-01T12:00:00Z","billable_count":2}`),
		0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	require.NoError(t, idx.indexReportsDir(ctx))

	got, err := store.GetSnapshot(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, 2, got.BillableCount)
	assert.NotNil(t, got.ReindexedAt)
}

func TestIndexReportsDir_MalformedReport(t *testing.T) {
	dir := t.TempDir()
	idx, store := setupIndexer(t, dir)
	ctx := context.Background()

	writeReport(t, dir, "bad", `{not json`)
	writeReport(t, dir, "good", `{"id":"good","generated_at":"2025-06-01T12:00:00Z"}`)

	// Malformed files are logged and skipped, not fatal.
	require.NoError(t, idx.indexReportsDir(ctx))

	snaps, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "good", snaps[0].ID)
}

func TestIndexReportsDir_MissingDir(t *testing.T) {
	idx, _ := setupIndexer(t, filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, idx.indexReportsDir(context.Background()))
}

package reportstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genolytics/labmetrics/pkg/api/reportstore"
	"github.com/genolytics/labmetrics/pkg/config"
)

func setupTestStore(t *testing.T) reportstore.Store {
	t.Helper()

	cfg := &config.APIDatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := reportstore.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func snapshot(id string, generatedAt time.Time) *reportstore.Snapshot {
	return &reportstore.Snapshot{
		ID:            id,
		GeneratedAt:   generatedAt,
		Path:          "/reports/report-" + id + ".json",
		TotalRuns:     10,
		BillableCount: 6,
		UsageCount:    8,
		Payload:       `{"id":"` + id + `"}`,
		FileModTime:   generatedAt,
		IndexedAt:     time.Now().UTC(),
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	snap := snapshot("abc-123", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.UpsertSnapshot(ctx, snap))

	got, err := s.GetSnapshot(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, 6, got.BillableCount)
	assert.Equal(t, 8, got.UsageCount)
	assert.Equal(t, `{"id":"abc-123"}`, got.Payload)
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	snap := snapshot("idem", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.UpsertSnapshot(ctx, snap))

	snap.BillableCount = 9
	require.NoError(t, s.UpsertSnapshot(ctx, snap))

	got, err := s.GetSnapshot(ctx, "idem")
	require.NoError(t, err)
	assert.Equal(t, 9, got.BillableCount)

	snaps, err := s.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestStore_ListOrderAndLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertSnapshot(ctx, snapshot("old", base)))
	require.NoError(t, s.UpsertSnapshot(ctx, snapshot("mid", base.Add(time.Hour))))
	require.NoError(t, s.UpsertSnapshot(ctx, snapshot("new", base.Add(2*time.Hour))))

	snaps, err := s.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "new", snaps[0].ID)
	assert.Equal(t, "mid", snaps[1].ID)

	// Listing omits the payload column.
	assert.Empty(t, snaps[0].Payload)

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
}

func TestStore_ListIndexed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	modTime := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	snap := snapshot("tracked", modTime)
	require.NoError(t, s.UpsertSnapshot(ctx, snap))

	indexed, err := s.ListIndexed(ctx)
	require.NoError(t, err)
	require.Len(t, indexed, 1)
	assert.True(t, indexed["tracked"].Equal(modTime))
}

func TestStore_DeleteSnapshot(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSnapshot(
		ctx, snapshot("gone", time.Now().UTC()),
	))
	require.NoError(t, s.DeleteSnapshot(ctx, "gone"))

	_, err := s.GetSnapshot(ctx, "gone")
	assert.Error(t, err)
}

func TestStore_LatestSnapshotEmpty(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.LatestSnapshot(context.Background())
	assert.Error(t, err)
}

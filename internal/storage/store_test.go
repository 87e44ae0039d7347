package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReportStore_PutIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()

	report := &Report{ID: "r1", CreatedAt: time.Now(), Content: "first", BirthDate: "1990-03-15"}
	require.NoError(t, store.Put(ctx, report))

	report.Content = "second"
	require.NoError(t, store.Put(ctx, report))

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Content)
}

func TestMemoryReportStore_GetMissingReturnsNil(t *testing.T) {
	got, err := NewMemoryReportStore().Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryReportStore_PurgesExpiredPendingRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return base }

	require.NoError(t, store.Put(ctx, &Report{
		ID: "pending", CreatedAt: base, Content: "a", BirthDate: "1990-03-15", PendingSince: base,
	}))
	require.NoError(t, store.Put(ctx, &Report{
		ID: "synced", CreatedAt: base, Content: "b", BirthDate: "1990-03-15",
	}))

	// One second inside the window the pending record survives.
	store.Now = func() time.Time { return base.Add(PendingRetention - time.Second) }
	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pending", "synced"}, ids)

	// Past the window it vanishes; the synced record is untouched.
	store.Now = func() time.Time { return base.Add(PendingRetention + time.Second) }
	ids, err = store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"synced"}, ids)
}

func TestMemoryReportStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.Put(ctx, &Report{
			ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour), Content: id, BirthDate: "1990-03-15",
		}))
	}

	reports, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "new", reports[0].ID)
	assert.Equal(t, "old", reports[2].ID)
}

func TestMemoryProfileStore_DefaultPromotionOnDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProfileStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"p1", "p2", "p3"} {
		created := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Put(ctx, &Profile{
			ID: id, BirthDate: "1990-03-15", Gender: "female", CreatedAt: created, UpdatedAt: created,
		}))
	}
	require.NoError(t, store.SetDefault(ctx, "p1"))

	// Deleting a non-default profile leaves the default alone.
	require.NoError(t, store.Delete(ctx, "p2"))
	defaultID, err := store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", defaultID)

	// Deleting the default promotes the most recently created survivor.
	require.NoError(t, store.Delete(ctx, "p1"))
	defaultID, err = store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p3", defaultID)

	// Deleting the last profile clears the default entirely.
	require.NoError(t, store.Delete(ctx, "p3"))
	defaultID, err = store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Empty(t, defaultID)
}

func TestMemoryProfileStore_SetDefaultRequiresExistingProfile(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProfileStore()

	assert.Error(t, store.SetDefault(ctx, "ghost"))

	now := time.Now()
	require.NoError(t, store.Put(ctx, &Profile{
		ID: "p1", BirthDate: "1990-03-15", Gender: "other", CreatedAt: now, UpdatedAt: now,
	}))
	assert.NoError(t, store.SetDefault(ctx, "p1"))
}

func TestMemoryProfileStore_PurgesExpiredPendingProfiles(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProfileStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return base }

	require.NoError(t, store.Put(ctx, &Profile{
		ID: "anon", BirthDate: "1990-03-15", Gender: "male",
		CreatedAt: base, UpdatedAt: base, PendingSince: base,
	}))

	store.Now = func() time.Time { return base.Add(PendingRetention + time.Minute) }
	profiles, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func newSQLiteReportStore(t *testing.T) ReportStore {
	t.Helper()
	store, err := NewReportStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newSQLiteProfileStore(t *testing.T) ProfileStore {
	t.Helper()
	store, err := NewProfileStore(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteReportStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteReportStore(t)

	report := &Report{
		ID:        "r1",
		CreatedAt: time.Now().UTC(),
		Content:   "# Report\n\nBody.",
		BirthDate: "1990-03-15",
		BirthTime: "08:30",
		Gender:    "female",
		Summary:   "# Report Body.",
	}
	require.NoError(t, store.Put(ctx, report))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, report.Content, got.Content)
	assert.Equal(t, report.BirthTime, got.BirthTime)
	assert.Equal(t, report.Summary, got.Summary)
	assert.False(t, got.IsPending())

	// Upsert replaces in place.
	report.Content = "revised"
	require.NoError(t, store.Put(ctx, report))
	got, err = store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "revised", got.Content)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestSQLiteReportStore_NullableFieldsSurviveScan(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteReportStore(t)

	require.NoError(t, store.Put(ctx, &Report{
		ID:        "bare",
		CreatedAt: time.Now().UTC(),
		Content:   "content only",
		BirthDate: "1990-03-15",
	}))

	got, err := store.Get(ctx, "bare")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.BirthTime)
	assert.Empty(t, got.Gender)
	assert.Empty(t, got.Summary)
	assert.True(t, got.PendingSince.IsZero())
}

func TestSQLiteReportStore_GetMissingReturnsNil(t *testing.T) {
	got, err := newSQLiteReportStore(t).Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteReportStore_PurgesExpiredPendingRecords(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteReportStore(t)
	sqlite := store.(*SQLiteReportStore)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	sqlite.now = func() time.Time { return base }

	require.NoError(t, store.Put(ctx, &Report{
		ID: "pending", CreatedAt: base, Content: "a", BirthDate: "1990-03-15", PendingSince: base,
	}))
	require.NoError(t, store.Put(ctx, &Report{
		ID: "synced", CreatedAt: base, Content: "b", BirthDate: "1990-03-15",
	}))

	sqlite.now = func() time.Time { return base.Add(PendingRetention + time.Second) }
	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"synced"}, ids)
}

func TestSQLiteProfileStore_DefaultPromotionOnDelete(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteProfileStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"p1", "p2", "p3"} {
		created := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Put(ctx, &Profile{
			ID: id, BirthDate: "1990-03-15", Gender: "female", CreatedAt: created, UpdatedAt: created,
		}))
	}
	require.NoError(t, store.SetDefault(ctx, "p1"))

	require.NoError(t, store.Delete(ctx, "p2"))
	defaultID, err := store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", defaultID)

	require.NoError(t, store.Delete(ctx, "p1"))
	defaultID, err = store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p3", defaultID)

	require.NoError(t, store.Delete(ctx, "p3"))
	defaultID, err = store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Empty(t, defaultID)
}

func TestSQLiteProfileStore_SetDefaultRequiresExistingProfile(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteProfileStore(t)

	assert.Error(t, store.SetDefault(ctx, "ghost"))

	now := time.Now().UTC()
	require.NoError(t, store.Put(ctx, &Profile{
		ID: "p1", BirthDate: "1990-03-15", Gender: "other", CreatedAt: now, UpdatedAt: now,
	}))
	assert.NoError(t, store.SetDefault(ctx, "p1"))
}

func TestMemoryProfileStore_ClearResetsDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProfileStore()

	now := time.Now()
	require.NoError(t, store.Put(ctx, &Profile{
		ID: "p1", BirthDate: "1990-03-15", Gender: "female", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SetDefault(ctx, "p1"))

	require.NoError(t, store.Clear(ctx))

	defaultID, err := store.DefaultID(ctx)
	require.NoError(t, err)
	assert.Empty(t, defaultID)
}

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFetch(payload []byte, calls *int) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		*calls++
		return payload, nil
	}
}

func TestDirStore_FetchThenHit(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir, "example.com_8080")

	calls := 0
	fetch := countingFetch([]byte(`[{"category_id":"1"}]`), &calls)

	first, err := store.GetOrFetch(context.Background(), "live_categories", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	second, err := store.GetOrFetch(context.Background(), "live_categories", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call should be served from cache")
	assert.Equal(t, first, second)
}

func TestDirStore_FileNaming(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	store := NewDirStore(dir, "example.com_8080", WithClock(func() time.Time { return day }))

	_, err := store.GetOrFetch(context.Background(), "live_streams", countingFetch([]byte(`[]`), new(int)))
	require.NoError(t, err)

	path := filepath.Join(dir, "cache-example.com_8080-live_streams-2026-03-15.json")
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestDirStore_StaleDayIsMiss(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	store := NewDirStore(dir, "srv", WithClock(func() time.Time { return clock }))

	calls := 0
	fetch := countingFetch([]byte(`{"ok":true}`), &calls)

	_, err := store.GetOrFetch(context.Background(), "series", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Crossing midnight invalidates yesterday's record.
	clock = clock.Add(2 * time.Hour)
	_, err = store.GetOrFetch(context.Background(), "series", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDirStore_CorruptRecordIsMiss(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	store := NewDirStore(dir, "srv", WithClock(func() time.Time { return day }))

	path := filepath.Join(dir, "cache-srv-vod_streams-2026-03-15.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"truncated": `), 0o644))

	calls := 0
	payload, err := store.GetOrFetch(context.Background(), "vod_streams", countingFetch([]byte(`[]`), &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "corrupt record should trigger a live fetch")
	assert.Equal(t, []byte(`[]`), payload)

	// The corrupt record was replaced with the fresh payload.
	replaced, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, []byte(`[]`), replaced)
}

func TestDirStore_Bypass(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir, "srv", WithBypass(true))

	calls := 0
	fetch := countingFetch([]byte(`[1]`), &calls)

	_, err := store.GetOrFetch(context.Background(), "live_categories", fetch)
	require.NoError(t, err)
	_, err = store.GetOrFetch(context.Background(), "live_categories", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "bypass should always hit the provider")
}

func TestDirStore_FetchErrorPropagates(t *testing.T) {
	store := NewDirStore(t.TempDir(), "srv")

	wantErr := errors.New("provider down")
	_, err := store.GetOrFetch(context.Background(), "live_streams", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestDirStore_WriteFailureStillReturnsPayload(t *testing.T) {
	// Point the store at a path that cannot be created (a file where the
	// directory should be).
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	store := NewDirStore(blocked, "srv")
	payload, err := store.GetOrFetch(context.Background(), "live_categories", countingFetch([]byte(`[]`), new(int)))
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), payload)
}

func TestMemStore(t *testing.T) {
	store := NewMemStore(false)

	calls := 0
	fetch := countingFetch([]byte(`{}`), &calls)

	_, err := store.GetOrFetch(context.Background(), "user_info", fetch)
	require.NoError(t, err)
	_, err = store.GetOrFetch(context.Background(), "user_info", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

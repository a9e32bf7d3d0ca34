package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/detect"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/store"
)

func newPipeline(t *testing.T) (*database.Repository, *store.ItemStore, *Ingestor) {
	t.Helper()

	repo, err := database.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	items := store.NewItemStore(repo, 0, testLogger())
	ing := New(repo, items, testLogger())
	return repo, items, ing
}

func capture(content string) *CaptureEvent {
	contentType, category := detect.Classify(content)
	return &CaptureEvent{
		Content:     content,
		ContentType: contentType,
		Category:    category,
		SourceApp:   "TestApp",
		Timestamp:   time.Now(),
	}
}

func requireCanonicalOrder(t *testing.T, items []*database.ClipboardItem) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		a, b := items[i-1], items[i]
		if a.IsPinned != b.IsPinned {
			require.True(t, a.IsPinned, "pinned items must sort first")
			continue
		}
		require.False(t, a.Timestamp.Before(b.Timestamp),
			"items %d and %d out of recency order", i-1, i)
	}
}

func TestCaptureAndRecaptureEmail(t *testing.T) {
	_, items, ing := newPipeline(t)

	ing.Enqueue(capture("hello@test.com"))
	ing.WaitIdle()

	cached := items.Items()
	require.Len(t, cached, 1)
	require.Equal(t, "email", cached[0].ContentType)
	require.Equal(t, "email", cached[0].Category)

	// Bury it under newer items.
	for i := 0; i < 3; i++ {
		ev := capture(fmt.Sprintf("filler-%d", i))
		ev.Timestamp = time.Now().Add(time.Duration(i+1) * time.Minute)
		ing.Enqueue(ev)
	}
	ing.WaitIdle()
	require.Len(t, items.Items(), 4)
	require.NotEqual(t, "hello@test.com", items.Items()[0].Content)

	// Re-capture the identical string: still one row, moved to the top.
	again := capture("hello@test.com")
	again.Timestamp = time.Now().Add(10 * time.Minute)
	ing.Enqueue(again)
	ing.WaitIdle()

	cached = items.Items()
	require.Len(t, cached, 4)
	require.Equal(t, "hello@test.com", cached[0].Content)
	requireCanonicalOrder(t, cached)
}

func TestPinAndUnpinRestoresPosition(t *testing.T) {
	_, items, ing := newPipeline(t)

	base := time.Now().Add(-time.Hour)
	target := capture("buried")
	target.Timestamp = base
	ing.Enqueue(target)
	for i := 0; i < 10; i++ {
		ev := capture(fmt.Sprintf("newer-%d", i))
		ev.Timestamp = base.Add(time.Duration(i+1) * time.Minute)
		ing.Enqueue(ev)
	}
	ing.WaitIdle()

	cached := items.Items()
	require.Len(t, cached, 11)
	require.Equal(t, "buried", cached[len(cached)-1].Content)
	buriedID := cached[len(cached)-1].ID

	ctx := context.Background()
	require.NoError(t, items.TogglePin(ctx, buriedID))
	cached = items.Items()
	require.Equal(t, "buried", cached[0].Content)
	requireCanonicalOrder(t, cached)

	require.NoError(t, items.TogglePin(ctx, buriedID))
	cached = items.Items()
	require.Equal(t, "buried", cached[len(cached)-1].Content)
	requireCanonicalOrder(t, cached)
}

func TestBumpPatchesWithoutReload(t *testing.T) {
	repo, items, ing := newPipeline(t)

	ing.Enqueue(capture("stable"))
	ing.WaitIdle()

	var notifications int
	unsubscribe := items.Subscribe(func() { notifications++ })
	defer unsubscribe()

	bump := capture("stable")
	bump.Timestamp = time.Now().Add(time.Minute)
	ing.Enqueue(bump)
	ing.WaitIdle()

	require.Equal(t, 1, notifications, "a bump patches in place with one notification")

	// Storage agrees with the cache.
	rows, err := repo.ListItems(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.WithinDuration(t, bump.Timestamp, rows[0].Timestamp, time.Second)
}

func TestBumpBeyondHistoryLimitSurfaces(t *testing.T) {
	repo, err := database.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	items := store.NewItemStore(repo, 2, testLogger())
	ing := New(repo, items, testLogger())

	base := time.Now().Add(-time.Hour)
	for i, content := range []string{"oldest", "mid", "top"} {
		ev := capture(content)
		ev.Timestamp = base.Add(time.Duration(i) * time.Minute)
		ing.Enqueue(ev)
	}
	ing.WaitIdle()

	// The oldest item fell outside the two-item window.
	cached := items.Items()
	require.Len(t, cached, 2)
	require.NotContains(t, []string{cached[0].Content, cached[1].Content}, "oldest")

	// Re-copying it bumps the existing row; even though the row was not
	// cached, the projection catches up and surfaces it at the top.
	again := capture("oldest")
	again.Timestamp = base.Add(10 * time.Minute)
	ing.Enqueue(again)
	ing.WaitIdle()

	cached = items.Items()
	require.Len(t, cached, 2)
	require.Equal(t, "oldest", cached[0].Content)
}

func TestMixedBurstPersistsEachIdentityOnce(t *testing.T) {
	repo, items, ing := newPipeline(t)

	for i := 0; i < 5; i++ {
		ing.Enqueue(capture("repeated"))
		ing.Enqueue(capture(fmt.Sprintf("unique-%d", i)))
	}
	ing.WaitIdle()

	rows, err := repo.ListItems(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	requireCanonicalOrder(t, items.Items())
}

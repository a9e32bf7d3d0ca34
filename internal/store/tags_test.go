package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/eventbus"
)

func newTagFixture(t *testing.T) (*database.Repository, *eventbus.Bus, *ItemStore, *TagStore) {
	t.Helper()

	repo := newTestRepo(t)
	bus := eventbus.New()
	items := NewItemStore(repo, 0, testLogger())
	tags := NewTagStore(repo, bus, items, testLogger())
	require.NoError(t, tags.EnsureDefaults(context.Background()))
	return repo, bus, items, tags
}

func TestTagDefaultsSeeded(t *testing.T) {
	_, _, _, tags := newTagFixture(t)

	require.Len(t, tags.Tags(), len(defaultTags))
	require.NoError(t, tags.EnsureDefaults(context.Background()))
	require.Len(t, tags.Tags(), len(defaultTags))
}

func TestTagCreateValidation(t *testing.T) {
	_, _, _, tags := newTagFixture(t)
	ctx := context.Background()

	_, err := tags.Create(ctx, "Favorite", "", "")
	require.ErrorIs(t, err, ErrReservedName)
	_, err = tags.Create(ctx, "password", "", "")
	require.ErrorIs(t, err, ErrReservedName)

	created, err := tags.Create(ctx, "urgent", "flame", "#ff5722")
	require.NoError(t, err)
	require.False(t, created.IsDefault)

	_, err = tags.Create(ctx, "URGENT", "", "")
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestTagRenameBroadcastsWithoutTouchingItems(t *testing.T) {
	repo, bus, items, tags := newTagFixture(t)
	ctx := context.Background()

	created, err := tags.Create(ctx, "urgent", "", "")
	require.NoError(t, err)

	itemID := seedItem(t, repo, "tagged", "text", time.Now())
	require.NoError(t, items.Reload(ctx))
	require.NoError(t, tags.Tag(ctx, itemID, created.ID))

	before, err := repo.GetItemByID(ctx, itemID)
	require.NoError(t, err)

	var events []eventbus.Event
	unsubscribe := bus.Subscribe(func(e eventbus.Event) { events = append(events, e) })
	defer unsubscribe()

	require.NoError(t, tags.Rename(ctx, created.ID, "asap", "bolt", "#ffee00"))

	require.Len(t, events, 1)
	require.Equal(t, eventbus.TagRenamed, events[0].Kind)
	require.Equal(t, "urgent", events[0].OldName)
	require.Equal(t, "asap", events[0].NewName)

	// The item row is untouched; the association is by tag id.
	after, err := repo.GetItemByID(ctx, itemID)
	require.NoError(t, err)
	require.Equal(t, before.UpdatedAt, after.UpdatedAt)

	names, err := repo.ListItemTagNames(ctx, itemID)
	require.NoError(t, err)
	require.Equal(t, []string{"asap"}, names)
}

func TestTagRenameMetadataOnlySkipsBroadcast(t *testing.T) {
	_, bus, _, tags := newTagFixture(t)
	ctx := context.Background()

	created, err := tags.Create(ctx, "urgent", "flame", "#ff5722")
	require.NoError(t, err)

	var events int
	unsubscribe := bus.Subscribe(func(eventbus.Event) { events++ })
	defer unsubscribe()

	require.NoError(t, tags.Rename(ctx, created.ID, "urgent", "bolt", "#000000"))
	require.Equal(t, 0, events)
}

func TestTagAndUntagRefreshProjection(t *testing.T) {
	repo, _, items, tags := newTagFixture(t)
	ctx := context.Background()

	created, err := tags.Create(ctx, "urgent", "", "")
	require.NoError(t, err)
	itemID := seedItem(t, repo, "tagged", "text", time.Now())
	require.NoError(t, items.Reload(ctx))

	require.NoError(t, tags.Tag(ctx, itemID, created.ID))
	require.Equal(t, "urgent", items.Items()[0].TagNames)

	require.NoError(t, tags.Untag(ctx, itemID, created.ID))
	require.Empty(t, items.Items()[0].TagNames)
}

func TestConcurrentTagWritesAndFilteredReads(t *testing.T) {
	repo, _, items, tags := newTagFixture(t)
	ctx := context.Background()

	created, err := tags.Create(ctx, "urgent", "", "")
	require.NoError(t, err)
	itemID := seedItem(t, repo, "tagged", "text", time.Now())
	require.NoError(t, items.Reload(ctx))
	items.SetFilters(Filters{Tags: []string{"urgent"}})

	// Tag projection rewrites and filtered reads both run under the item
	// store lock; interleaving them must never tear a row (run with the
	// race detector).
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			if err := tags.Tag(ctx, itemID, created.ID); err != nil {
				done <- err
				return
			}
			if err := tags.Untag(ctx, itemID, created.ID); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < 200; i++ {
		for _, item := range items.Filtered() {
			require.Equal(t, itemID, item.ID)
		}
	}
	require.NoError(t, <-done)

	// Settled state: the last write was an untag.
	require.Empty(t, items.Filtered())
}

func TestDeleteDefaultTagIsNoOp(t *testing.T) {
	repo, _, _, tags := newTagFixture(t)
	ctx := context.Background()

	defaultTag := tags.Tags()[0]
	require.NoError(t, tags.Delete(ctx, defaultTag.ID))

	rows, err := repo.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(defaultTags))
}

func TestDeleteCustomTagCleansAssociations(t *testing.T) {
	repo, _, items, tags := newTagFixture(t)
	ctx := context.Background()

	created, err := tags.Create(ctx, "scratch", "", "")
	require.NoError(t, err)
	itemID := seedItem(t, repo, "tagged", "text", time.Now())
	require.NoError(t, items.Reload(ctx))
	require.NoError(t, tags.Tag(ctx, itemID, created.ID))

	require.NoError(t, tags.Delete(ctx, created.ID))

	require.Len(t, tags.Tags(), len(defaultTags))
	names, err := repo.ListItemTagNames(ctx, itemID)
	require.NoError(t, err)
	require.Empty(t, names)
	require.Empty(t, items.Items()[0].TagNames)
}

package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
)

// QueryDebounce is how long the free-text query must be idle before the
// filter-relevant debounced value updates.
const QueryDebounce = 300 * time.Millisecond

// PinFilter selects which pin states pass the pin dimension.
type PinFilter int

const (
	PinAny PinFilter = iota
	PinnedOnly
	UnpinnedOnly
)

// ItemPatch carries the fields an in-place bump updates on a cached item.
type ItemPatch struct {
	Timestamp   time.Time
	ContentType string
	Category    string
}

// Filters are the composable filter dimensions over the item projection.
// Dimensions compose by AND; within Tags the match is OR (any shared tag).
// Nil allow-lists mean "no restriction"; zero times mean an open range.
type Filters struct {
	Category   string // exact match; "all" or "" means no filter
	Pin        PinFilter
	Types      []string
	Categories []string
	Tags       []string
	From       time.Time
	To         time.Time
}

// ItemStore is the in-memory ordered projection of persisted items. It owns
// the canonical order (pinned first, then most recent), supports in-place
// patching when a duplicate bump arrives and full reloads when a new item
// is inserted, and notifies subscribed observers after every base mutation.
type ItemStore struct {
	repo   *database.Repository
	logger *slog.Logger

	mu           sync.Mutex
	items        []*database.ClipboardItem
	historyLimit int

	filters        Filters
	rawQuery       string
	debouncedQuery string
	queryTimer     *time.Timer

	observers map[int]func()
	nextObsID int
}

func NewItemStore(repo *database.Repository, historyLimit int, logger *slog.Logger) *ItemStore {
	return &ItemStore{
		repo:         repo,
		logger:       logger,
		historyLimit: historyLimit,
		filters:      Filters{Category: database.AllCategories},
		observers:    make(map[int]func()),
	}
}

// Subscribe registers an observer invoked after every base-state mutation
// and returns an unsubscribe function.
func (s *ItemStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *ItemStore) notify() {
	s.mu.Lock()
	observers := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// Reload replaces the cached collection from storage. Used at startup and
// whenever an ingestion pass inserted at least one new item.
func (s *ItemStore) Reload(ctx context.Context) error {
	items, err := s.repo.ListItems(ctx, s.historyLimit, "")
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.notify()
	return nil
}

// Patch applies timestamp/classification bumps to cached items by id and
// re-sorts in place, avoiding a storage round trip when nothing structural
// changed. A bump for an id the cache does not hold (the item had fallen
// outside the history limit) falls back to a full reload so the bumped
// item still surfaces at its canonical position.
func (s *ItemStore) Patch(ctx context.Context, bumps map[int64]ItemPatch) error {
	if len(bumps) == 0 {
		return nil
	}

	s.mu.Lock()
	applied := 0
	for _, item := range s.items {
		patch, ok := bumps[item.ID]
		if !ok {
			continue
		}
		item.Timestamp = patch.Timestamp
		if patch.ContentType != "" {
			item.ContentType = patch.ContentType
		}
		if patch.Category != "" {
			item.Category = patch.Category
		}
		applied++
	}
	if applied < len(bumps) {
		s.mu.Unlock()
		return s.Reload(ctx)
	}
	s.sortLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// sortLocked applies the canonical order: pinned descending, timestamp
// descending, id descending as the deterministic tie-break.
func (s *ItemStore) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i], s.items[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
}

// Items returns a snapshot of the cached collection in canonical order.
func (s *ItemStore) Items() []*database.ClipboardItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*database.ClipboardItem, len(s.items))
	copy(snapshot, s.items)
	return snapshot
}

// SetQuery exposes the raw query immediately (for instant echo widgets) and
// schedules the debounced value to update after QueryDebounce of input
// inactivity. Each call resets the pending timer: last writer wins.
func (s *ItemStore) SetQuery(query string) {
	s.mu.Lock()
	s.rawQuery = query
	if s.queryTimer != nil {
		s.queryTimer.Stop()
	}
	s.queryTimer = time.AfterFunc(QueryDebounce, func() {
		s.mu.Lock()
		s.debouncedQuery = query
		s.mu.Unlock()
		s.notify()
	})
	s.mu.Unlock()
}

// Query returns the raw, undebounced query text.
func (s *ItemStore) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawQuery
}

// DebouncedQuery returns the query value the filter derivation uses.
func (s *ItemStore) DebouncedQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debouncedQuery
}

func (s *ItemStore) SetFilters(filters Filters) {
	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	s.notify()
}

func (s *ItemStore) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Filtered derives the filtered view of the cached collection. It is a pure
// function of the cached items, the filter dimensions and the debounced
// query; order is preserved from the canonical order. Matching runs under
// the store lock so a concurrent bump or tag rewrite cannot tear a row
// mid-evaluation.
func (s *ItemStore) Filtered() []*database.ClipboardItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	filters := s.filters
	query := strings.ToLower(s.debouncedQuery)

	var filtered []*database.ClipboardItem
	for _, item := range s.items {
		if matches(item, filters, query) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func matches(item *database.ClipboardItem, f Filters, query string) bool {
	if f.Category != "" && f.Category != database.AllCategories && item.Category != f.Category {
		return false
	}

	if query != "" {
		haystacks := []string{item.Content, item.SourceApp, item.Category, item.ContentType}
		found := false
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), query) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	switch f.Pin {
	case PinnedOnly:
		if !item.IsPinned {
			return false
		}
	case UnpinnedOnly:
		if item.IsPinned {
			return false
		}
	}

	if len(f.Types) > 0 && !contains(f.Types, item.ContentType) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, item.Category) {
		return false
	}

	if len(f.Tags) > 0 {
		// OR semantics: one shared tag is enough.
		itemTags := strings.Split(item.TagNames, ",")
		found := false
		for _, tag := range itemTags {
			if tag != "" && contains(f.Tags, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !f.From.IsZero() && item.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && item.CreatedAt.After(f.To) {
		return false
	}

	return true
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// TogglePin flips an item's pinned state in storage and in the cache, then
// re-sorts so the item takes its canonical position.
func (s *ItemStore) TogglePin(ctx context.Context, id int64) error {
	s.mu.Lock()
	var target *database.ClipboardItem
	for _, item := range s.items {
		if item.ID == id {
			target = item
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return ErrNotFound
	}

	pinned := !target.IsPinned
	if err := s.repo.SetPinned(ctx, id, pinned); err != nil {
		return err
	}

	s.mu.Lock()
	target.IsPinned = pinned
	s.sortLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Delete soft-deletes the item and drops it from the cache.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetCategory moves the item to another category in storage and the cache.
func (s *ItemStore) SetCategory(ctx context.Context, id int64, category string) error {
	if err := s.repo.SetCategory(ctx, id, category); err != nil {
		return err
	}

	s.mu.Lock()
	for _, item := range s.items {
		if item.ID == id {
			item.Category = category
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// ApplyTagNames rewrites cached tag projections in bulk, keyed by item id.
// Ids absent from the cache are ignored. All writes happen under the store
// lock; callers must not mutate cached items directly.
func (s *ItemStore) ApplyTagNames(tagNames map[int64]string) {
	if len(tagNames) == 0 {
		return
	}

	s.mu.Lock()
	for _, item := range s.items {
		if names, ok := tagNames[item.ID]; ok {
			item.TagNames = names
		}
	}
	s.mu.Unlock()

	s.notify()
}

// ApplyCategoryRename rewrites the cached category strings after a rename
// cascade, keeping the projection consistent without a reload.
func (s *ItemStore) ApplyCategoryRename(oldName, newName string) {
	s.mu.Lock()
	changed := false
	for _, item := range s.items {
		if item.Category == oldName {
			item.Category = newName
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

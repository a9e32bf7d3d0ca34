package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/eventbus"
)

// TagStore keeps the in-memory tag catalog synced with storage. Tags relate
// to items through an association table keyed by tag id, so a rename only
// touches the catalog row before broadcasting.
type TagStore struct {
	repo   *database.Repository
	bus    *eventbus.Bus
	items  *ItemStore
	logger *slog.Logger

	mu       sync.Mutex
	tags     []*database.Tag
	creating map[string]struct{}

	observers map[int]func()
	nextObsID int
}

func NewTagStore(repo *database.Repository, bus *eventbus.Bus, items *ItemStore, logger *slog.Logger) *TagStore {
	return &TagStore{
		repo:      repo,
		bus:       bus,
		items:     items,
		logger:    logger,
		creating:  make(map[string]struct{}),
		observers: make(map[int]func()),
	}
}

func (s *TagStore) Subscribe(fn func()) func() {
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

func (s *TagStore) notify() {
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

// EnsureDefaults seeds the default tags (create-if-missing) and loads the
// catalog. Safe to call on every startup.
func (s *TagStore) EnsureDefaults(ctx context.Context) error {
	for _, def := range defaultTags {
		err := s.repo.EnsureTag(ctx, &database.Tag{
			Name:      def.Name,
			Icon:      def.Icon,
			Color:     def.Color,
			IsDefault: true,
		})
		if err != nil {
			return err
		}
	}

	return s.Reload(ctx)
}

func (s *TagStore) Reload(ctx context.Context) error {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tags = tags
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *TagStore) Tags() []*database.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*database.Tag, len(s.tags))
	copy(snapshot, s.tags)
	return snapshot
}

func (s *TagStore) byID(id int64) *database.Tag {
	for _, t := range s.tags {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *TagStore) collides(name string, excludeID int64) bool {
	key := nameKey(name)
	for _, t := range s.tags {
		if t.ID != excludeID && nameKey(t.Name) == key {
			return true
		}
	}
	return false
}

// Create validates the name, rejects case-insensitive collisions and
// duplicate concurrent creates, then inserts a custom tag.
func (s *TagStore) Create(ctx context.Context, name, icon, color string) (*database.Tag, error) {
	if err := ValidateTagName(name); err != nil {
		return nil, err
	}

	key := nameKey(name)

	s.mu.Lock()
	if s.collides(name, 0) {
		s.mu.Unlock()
		return nil, ErrDuplicateName
	}
	if _, inFlight := s.creating[key]; inFlight {
		s.mu.Unlock()
		return nil, ErrCreateInFlight
	}
	s.creating[key] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.creating, key)
		s.mu.Unlock()
	}()

	tag := &database.Tag{Name: name, Icon: icon, Color: color}
	if err := s.repo.CreateTag(ctx, tag); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tags = append(s.tags, tag)
	s.mu.Unlock()

	s.notify()
	return tag, nil
}

// Rename resolves the current stored name by catalog id, updates the
// catalog row, and broadcasts TagRenamed when the name actually changed.
// Item records are unaffected: the association table is keyed by tag id.
func (s *TagStore) Rename(ctx context.Context, id int64, newName, icon, color string) error {
	s.mu.Lock()
	current := s.byID(id)
	s.mu.Unlock()
	if current == nil {
		return fmt.Errorf("tag %d not found in catalog", id)
	}

	oldName := current.Name
	renamed := oldName != newName

	if renamed {
		if err := ValidateTagName(newName); err != nil {
			return err
		}
		s.mu.Lock()
		if s.collides(newName, id) {
			s.mu.Unlock()
			return ErrDuplicateName
		}
		s.mu.Unlock()
	}

	if err := s.repo.UpdateTag(ctx, id, newName, icon, color); err != nil {
		return err
	}

	s.mu.Lock()
	current.Name = newName
	current.Icon = icon
	current.Color = color
	s.mu.Unlock()

	if renamed {
		s.bus.Broadcast(eventbus.Event{
			Kind:     eventbus.TagRenamed,
			EntityID: id,
			OldName:  oldName,
			NewName:  newName,
		})
	}

	s.notify()
	return nil
}

// Delete removes a custom tag along with its associations. Deleting a
// default tag is a no-op with a warning.
func (s *TagStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	current := s.byID(id)
	s.mu.Unlock()
	if current == nil {
		return fmt.Errorf("tag %d not found in catalog", id)
	}

	if current.IsDefault {
		s.logger.Warn("refusing to delete default tag", "name", current.Name)
		return nil
	}

	if err := s.repo.DeleteTag(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i, t := range s.tags {
		if t.ID == id {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.refreshItemTags(ctx)
	s.notify()
	return nil
}

// Tag associates a tag with an item and refreshes the item's cached tag
// projection.
func (s *TagStore) Tag(ctx context.Context, itemID, tagID int64) error {
	if err := s.repo.AddItemTag(ctx, itemID, tagID); err != nil {
		return err
	}
	return s.refreshItemTagNames(ctx, itemID)
}

// Untag removes an association and refreshes the item's cached projection.
func (s *TagStore) Untag(ctx context.Context, itemID, tagID int64) error {
	if err := s.repo.RemoveItemTag(ctx, itemID, tagID); err != nil {
		return err
	}
	return s.refreshItemTagNames(ctx, itemID)
}

func (s *TagStore) refreshItemTagNames(ctx context.Context, itemID int64) error {
	names, err := s.repo.ListItemTagNames(ctx, itemID)
	if err != nil {
		return err
	}

	s.items.ApplyTagNames(map[int64]string{itemID: strings.Join(names, ",")})
	return nil
}

// refreshItemTags re-derives every cached item's tag projection after a tag
// deletion removed association rows in bulk. The fresh projections are
// handed to the item store in one batch so the rewrite happens under its
// lock.
func (s *TagStore) refreshItemTags(ctx context.Context) {
	tagNames := make(map[int64]string)
	for _, item := range s.items.Items() {
		names, err := s.repo.ListItemTagNames(ctx, item.ID)
		if err != nil {
			s.logger.Error("failed to refresh item tags", "item_id", item.ID, "error", err)
			continue
		}
		tagNames[item.ID] = strings.Join(names, ",")
	}
	s.items.ApplyTagNames(tagNames)
}

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/eventbus"
)

// CategoryStore keeps the in-memory category catalog synced with storage
// and owns the rename protocol. Items reference categories by name, so a
// rename must update both the catalog row and every item carrying the old
// name, then broadcast the change for any UI surface showing it.
type CategoryStore struct {
	repo   *database.Repository
	bus    *eventbus.Bus
	items  *ItemStore
	logger *slog.Logger

	mu         sync.Mutex
	categories []*database.Category
	order      []string
	creating   map[string]struct{}

	observers map[int]func()
	nextObsID int
}

func NewCategoryStore(repo *database.Repository, bus *eventbus.Bus, items *ItemStore, logger *slog.Logger) *CategoryStore {
	return &CategoryStore{
		repo:      repo,
		bus:       bus,
		items:     items,
		logger:    logger,
		creating:  make(map[string]struct{}),
		observers: make(map[int]func()),
	}
}

func (s *CategoryStore) Subscribe(fn func()) func() {
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

func (s *CategoryStore) notify() {
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

// EnsureDefaults seeds the built-in categories (create-if-missing) and
// loads the catalog. Safe to call on every startup.
func (s *CategoryStore) EnsureDefaults(ctx context.Context) error {
	for i, builtin := range builtinCategories {
		err := s.repo.EnsureCategory(ctx, &database.Category{
			Name:      builtin.Name,
			Icon:      builtin.Icon,
			Color:     builtin.Color,
			IsCustom:  false,
			SortOrder: i,
		})
		if err != nil {
			return err
		}
	}

	return s.Reload(ctx)
}

func (s *CategoryStore) Reload(ctx context.Context) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return err
	}

	order := make([]string, len(categories))
	for i, c := range categories {
		order[i] = c.Name
	}

	s.mu.Lock()
	s.categories = categories
	s.order = order
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *CategoryStore) Categories() []*database.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*database.Category, len(s.categories))
	copy(snapshot, s.categories)
	return snapshot
}

// Order returns the category names in display order.
func (s *CategoryStore) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := make([]string, len(s.order))
	copy(order, s.order)
	return order
}

func (s *CategoryStore) byID(id int64) *database.Category {
	for _, c := range s.categories {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *CategoryStore) collides(name string, excludeID int64) bool {
	key := nameKey(name)
	for _, c := range s.categories {
		if c.ID != excludeID && nameKey(c.Name) == key {
			return true
		}
	}
	return false
}

// Create validates the name, rejects case-insensitive collisions, guards
// against duplicate concurrent creation of the same intended name, and
// inserts a custom category. All validation failures are returned before
// any write is attempted.
func (s *CategoryStore) Create(ctx context.Context, name, icon, color string) (*database.Category, error) {
	if err := ValidateCategoryName(name); err != nil {
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
	sortOrder := len(s.categories)
	s.mu.Unlock()

	// Cleared regardless of outcome, so a failed create can be retried.
	defer func() {
		s.mu.Lock()
		delete(s.creating, key)
		s.mu.Unlock()
	}()

	category := &database.Category{
		Name:      name,
		Icon:      icon,
		Color:     color,
		IsCustom:  true,
		SortOrder: sortOrder,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.categories = append(s.categories, category)
	s.order = append(s.order, category.Name)
	s.mu.Unlock()

	s.notify()
	return category, nil
}

// Rename executes the category rename protocol:
//
//  1. resolve the current stored name via the catalog id, not the possibly
//     stale UI-supplied name;
//  2. if the name is unchanged, update icon/color only (no cascade);
//  3. otherwise update the catalog row and rewrite every item referencing
//     the old name as one unit (the gateway relaxes and restores the
//     referential constraint around the two writes);
//  4. on a successful name change, update the cached items and order list
//     and broadcast CategoryRenamed.
func (s *CategoryStore) Rename(ctx context.Context, id int64, newName, icon, color string) error {
	s.mu.Lock()
	current := s.byID(id)
	s.mu.Unlock()
	if current == nil {
		return fmt.Errorf("category %d not found in catalog", id)
	}

	if current.Name != newName {
		if err := ValidateCategoryName(newName); err != nil {
			return err
		}
		s.mu.Lock()
		if s.collides(newName, id) {
			s.mu.Unlock()
			return ErrDuplicateName
		}
		s.mu.Unlock()
	}

	oldName, renamed, err := s.repo.RenameCategoryCascade(ctx, id, newName, icon, color)
	if err != nil {
		return err
	}

	s.mu.Lock()
	current.Icon = icon
	current.Color = color
	if renamed {
		current.Name = newName
		for i, name := range s.order {
			if name == oldName {
				s.order[i] = newName
			}
		}
	}
	s.mu.Unlock()

	if renamed {
		s.items.ApplyCategoryRename(oldName, newName)
		s.bus.Broadcast(eventbus.Event{
			Kind:     eventbus.CategoryRenamed,
			EntityID: id,
			OldName:  oldName,
			NewName:  newName,
		})
	}

	s.notify()
	return nil
}

// Delete removes a custom category. Deleting a built-in is a no-op with a
// warning, not an error. Items referencing the deleted name are left
// untouched and become orphaned by design of the data model.
func (s *CategoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	current := s.byID(id)
	s.mu.Unlock()
	if current == nil {
		return fmt.Errorf("category %d not found in catalog", id)
	}

	if !current.IsCustom {
		s.logger.Warn("refusing to delete built-in category", "name", current.Name)
		return nil
	}

	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			break
		}
	}
	for i, name := range s.order {
		if name == current.Name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

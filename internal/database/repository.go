package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/util"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// AllCategories is the sentinel category filter meaning "no filter".
const AllCategories = "all"

type Repository struct {
	db *bun.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	ctx := context.Background()

	// Create tables
	models := []interface{}{
		(*ClipboardItem)(nil),
		(*Category)(nil),
		(*Tag)(nil),
		(*ItemTag)(nil),
	}

	for _, model := range models {
		if _, err := r.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	// Create indexes
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_items_order ON clipboard_items(is_pinned DESC, timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_items_hash ON clipboard_items(hash)",
		"CREATE INDEX IF NOT EXISTS idx_items_category ON clipboard_items(category)",
		"CREATE INDEX IF NOT EXISTS idx_items_deleted ON clipboard_items(is_deleted)",
		"CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id)",
	}

	for _, idx := range indexes {
		if _, err := r.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// MergeOrInsert is the atomic find-by-identity-or-create operation. If a
// non-deleted row with the same identity hash exists, its timestamp,
// content type and category are bumped and isNew is false; otherwise the
// item is inserted. Exactly one non-deleted row per identity results.
func (r *Repository) MergeOrInsert(ctx context.Context, item *ClipboardItem) (id int64, isNew bool, err error) {
	if item.Hash == "" {
		item.Hash = util.IdentityHash(item.Content, item.ImagePath)
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	var existing ClipboardItem
	err = r.db.NewSelect().
		Model(&existing).
		Where("hash = ?", item.Hash).
		Where("is_deleted = FALSE").
		Limit(1).
		Scan(ctx)

	switch {
	case err == nil:
		// Bump the existing row instead of inserting a duplicate.
		_, err = r.db.NewUpdate().
			Model((*ClipboardItem)(nil)).
			Set("timestamp = ?", item.Timestamp).
			Set("content_type = ?", item.ContentType).
			Set("category = ?", item.Category).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", existing.ID).
			Exec(ctx)
		if err != nil {
			return 0, false, fmt.Errorf("failed to bump existing item: %w", err)
		}
		return existing.ID, false, nil

	case errors.Is(err, sql.ErrNoRows):
		now := time.Now()
		item.CreatedAt = now
		item.UpdatedAt = now

		if _, err := r.db.NewInsert().Model(item).Exec(ctx); err != nil {
			return 0, false, fmt.Errorf("failed to insert clipboard item: %w", err)
		}
		return item.ID, true, nil

	default:
		return 0, false, fmt.Errorf("failed to check existing item: %w", err)
	}
}

// ListItems returns non-deleted items in canonical order (pinned first,
// then most recent, id as tie-break), with tag names filled in. A limit of
// zero or less means unlimited; an empty or "all" category means no filter.
func (r *Repository) ListItems(ctx context.Context, limit int, category string) ([]*ClipboardItem, error) {
	var items []*ClipboardItem

	q := r.db.NewSelect().
		Model(&items).
		Where("is_deleted = FALSE").
		Order("is_pinned DESC", "timestamp DESC", "id DESC")

	if category != "" && category != AllCategories {
		q = q.Where("category = ?", category)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	if err := r.fillTagNames(ctx, items); err != nil {
		return nil, err
	}

	return items, nil
}

// SearchItems returns non-deleted items whose content, category or source
// app contains query, in canonical order.
func (r *Repository) SearchItems(ctx context.Context, query string, limit int) ([]*ClipboardItem, error) {
	var items []*ClipboardItem

	pattern := "%" + query + "%"
	q := r.db.NewSelect().
		Model(&items).
		Where("is_deleted = FALSE").
		Where("content LIKE ? OR category LIKE ? OR source_app LIKE ?", pattern, pattern, pattern).
		Order("is_pinned DESC", "timestamp DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}

	if err := r.fillTagNames(ctx, items); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repository) fillTagNames(ctx context.Context, items []*ClipboardItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	var rows []struct {
		ItemID int64  `bun:"item_id"`
		Name   string `bun:"name"`
	}
	err := r.db.NewSelect().
		Model((*ItemTag)(nil)).
		Column("item_tag.item_id").
		ColumnExpr("tag.name AS name").
		Join("JOIN tags AS tag ON tag.id = item_tag.tag_id").
		Where("item_tag.item_id IN (?)", bun.In(ids)).
		Order("tag.name ASC").
		Scan(ctx, &rows)
	if err != nil {
		return fmt.Errorf("failed to load item tags: %w", err)
	}

	names := make(map[int64][]string, len(items))
	for _, row := range rows {
		names[row.ItemID] = append(names[row.ItemID], row.Name)
	}
	for _, item := range items {
		item.TagNames = strings.Join(names[item.ID], ",")
	}

	return nil
}

func (r *Repository) GetItemByID(ctx context.Context, id int64) (*ClipboardItem, error) {
	var item ClipboardItem
	err := r.db.NewSelect().
		Model(&item).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by ID: %w", err)
	}

	return &item, nil
}

// SoftDelete flags the item as deleted. The row is retained; every read
// path excludes it.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.NewUpdate().
		Model((*ClipboardItem)(nil)).
		Set("is_deleted = TRUE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to soft-delete item: %w", err)
	}

	return nil
}

func (r *Repository) SetPinned(ctx context.Context, id int64, pinned bool) error {
	_, err := r.db.NewUpdate().
		Model((*ClipboardItem)(nil)).
		Set("is_pinned = ?", pinned).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set pinned: %w", err)
	}

	return nil
}

func (r *Repository) SetCategory(ctx context.Context, id int64, category string) error {
	_, err := r.db.NewUpdate().
		Model((*ClipboardItem)(nil)).
		Set("category = ?", category).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}

	return nil
}

func (r *Repository) UpdateSourceApp(ctx context.Context, id int64, sourceApp string) error {
	_, err := r.db.NewUpdate().
		Model((*ClipboardItem)(nil)).
		Set("source_app = ?", sourceApp).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update source app: %w", err)
	}

	return nil
}

// CleanupOldItems hard-deletes unpinned items beyond the most recent
// maxItems. Pinned items are always kept.
func (r *Repository) CleanupOldItems(ctx context.Context, maxItems int) error {
	if maxItems <= 0 {
		return nil
	}

	subquery := r.db.NewSelect().
		Model((*ClipboardItem)(nil)).
		Column("id").
		Where("is_pinned = FALSE").
		Order("timestamp DESC").
		Limit(maxItems)

	_, err := r.db.NewDelete().
		Model((*ClipboardItem)(nil)).
		Where("is_pinned = FALSE").
		Where("id NOT IN (?)", subquery).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup excess items: %w", err)
	}

	return nil
}

// --- Categories ---

func (r *Repository) ListCategories(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := r.db.NewSelect().
		Model(&categories).
		Order("sort_order ASC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return categories, nil
}

func (r *Repository) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	var category Category
	err := r.db.NewSelect().
		Model(&category).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by ID: %w", err)
	}

	return &category, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *Category) error {
	category.CreatedAt = time.Now()
	if _, err := r.db.NewInsert().Model(category).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// EnsureCategory inserts a built-in category if no category with the same
// name exists yet. Safe to call on every startup.
func (r *Repository) EnsureCategory(ctx context.Context, category *Category) error {
	category.CreatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(category).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure category %q: %w", category.Name, err)
	}

	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().
		Model((*Category)(nil)).
		Where("id = ?", id).
		Where("is_custom = TRUE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return nil
}

// RenameCategoryCascade updates a category row and, when the name actually
// changes, rewrites every item referencing the old name. Items reference
// categories by name, so the two writes belong together; foreign-key
// enforcement is switched off for their duration and unconditionally
// restored. There is no compensating rollback if the item rewrite fails
// after the catalog write succeeded.
func (r *Repository) RenameCategoryCascade(ctx context.Context, id int64, newName, icon, color string) (oldName string, renamed bool, err error) {
	current, err := r.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, fmt.Errorf("category %d not found", id)
		}
		return "", false, err
	}

	if current.Name == newName {
		// Metadata-only update, no cascade.
		_, err = r.db.NewUpdate().
			Model((*Category)(nil)).
			Set("icon = ?", icon).
			Set("color = ?", color).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return "", false, fmt.Errorf("failed to update category: %w", err)
		}
		return current.Name, false, nil
	}

	// The PRAGMA is per-connection, so the whole cascade is pinned to one
	// connection from the pool.
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return "", false, fmt.Errorf("failed to relax foreign keys: %w", err)
	}
	defer func() {
		// Restore enforcement no matter how the cascade went.
		if _, restoreErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); restoreErr != nil && err == nil {
			err = fmt.Errorf("failed to restore foreign keys: %w", restoreErr)
		}
	}()

	_, err = conn.NewUpdate().
		Model((*Category)(nil)).
		Set("name = ?", newName).
		Set("icon = ?", icon).
		Set("color = ?", color).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to rename category: %w", err)
	}

	_, err = conn.NewUpdate().
		Model((*ClipboardItem)(nil)).
		Set("category = ?", newName).
		Where("category = ?", current.Name).
		Exec(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to cascade category rename to items: %w", err)
	}

	return current.Name, true, nil
}

// --- Tags ---

func (r *Repository) ListTags(ctx context.Context) ([]*Tag, error) {
	var tags []*Tag
	err := r.db.NewSelect().
		Model(&tags).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	return tags, nil
}

func (r *Repository) GetTagByID(ctx context.Context, id int64) (*Tag, error) {
	var tag Tag
	err := r.db.NewSelect().
		Model(&tag).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag by ID: %w", err)
	}

	return &tag, nil
}

func (r *Repository) CreateTag(ctx context.Context, tag *Tag) error {
	tag.CreatedAt = time.Now()
	if _, err := r.db.NewInsert().Model(tag).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}

	return nil
}

// EnsureTag inserts a default tag if no tag with the same name exists yet.
func (r *Repository) EnsureTag(ctx context.Context, tag *Tag) error {
	tag.CreatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(tag).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure tag %q: %w", tag.Name, err)
	}

	return nil
}

// UpdateTag rewrites a tag's name, icon and color. Items relate to tags by
// id through the association table, so no item rows are touched.
func (r *Repository) UpdateTag(ctx context.Context, id int64, name, icon, color string) error {
	_, err := r.db.NewUpdate().
		Model((*Tag)(nil)).
		Set("name = ?", name).
		Set("icon = ?", icon).
		Set("color = ?", color).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}

	return nil
}

// DeleteTag removes a tag's association rows, then the tag itself.
func (r *Repository) DeleteTag(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().
		Model((*ItemTag)(nil)).
		Where("tag_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove tag associations: %w", err)
	}

	_, err = r.db.NewDelete().
		Model((*Tag)(nil)).
		Where("id = ?", id).
		Where("is_default = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	return nil
}

func (r *Repository) AddItemTag(ctx context.Context, itemID, tagID int64) error {
	_, err := r.db.NewInsert().
		Model(&ItemTag{ItemID: itemID, TagID: tagID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to tag item: %w", err)
	}

	return nil
}

func (r *Repository) RemoveItemTag(ctx context.Context, itemID, tagID int64) error {
	_, err := r.db.NewDelete().
		Model((*ItemTag)(nil)).
		Where("item_id = ?", itemID).
		Where("tag_id = ?", tagID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to untag item: %w", err)
	}

	return nil
}

func (r *Repository) ListItemTagNames(ctx context.Context, itemID int64) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*ItemTag)(nil)).
		ColumnExpr("tag.name").
		Join("JOIN tags AS tag ON tag.id = item_tag.tag_id").
		Where("item_tag.item_id = ?", itemID).
		Order("tag.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("failed to list item tags: %w", err)
	}

	return names, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

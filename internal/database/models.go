package database

import (
	"time"

	"github.com/uptrace/bun"
)

type ClipboardItem struct {
	bun.BaseModel `bun:"table:clipboard_items"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Content     string `bun:"content" json:"content"`
	ImagePath   string `bun:"image_path" json:"image_path"`
	ContentType string `bun:"content_type,notnull" json:"content_type"`
	Category    string `bun:"category" json:"category"`
	SourceApp   string `bun:"source_app" json:"source_app"`

	// Hash is the identity key: sha256 over content or image path. At most
	// one non-deleted row exists per hash; MergeOrInsert enforces this, not
	// a DB constraint, because soft-deleted rows keep their hash.
	Hash string `bun:"hash,notnull" json:"hash"`

	IsPinned  bool `bun:"is_pinned,default:false" json:"is_pinned"`
	IsDeleted bool `bun:"is_deleted,default:false" json:"is_deleted"`

	// Timestamp is last activity, bumped on duplicate re-copy; it governs
	// recency ordering. CreatedAt never changes after insert.
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp" json:"timestamp"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	// TagNames is a read-only comma-joined projection of associated tag
	// names, filled on list reads.
	TagNames string `bun:"-" json:"tag_names"`
}

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,unique,notnull" json:"name"`
	Icon      string    `bun:"icon" json:"icon"`
	Color     string    `bun:"color" json:"color"`
	IsCustom  bool      `bun:"is_custom,default:false" json:"is_custom"`
	SortOrder int       `bun:"sort_order,default:0" json:"sort_order"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

type Tag struct {
	bun.BaseModel `bun:"table:tags"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,unique,notnull" json:"name"`
	Icon      string    `bun:"icon" json:"icon"`
	Color     string    `bun:"color" json:"color"`
	IsDefault bool      `bun:"is_default,default:false" json:"is_default"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

type ItemTag struct {
	bun.BaseModel `bun:"table:item_tags"`

	ItemID int64 `bun:"item_id,pk" json:"item_id"`
	TagID  int64 `bun:"tag_id,pk" json:"tag_id"`
}

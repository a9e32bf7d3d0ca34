package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/store"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/util"
)

// CaptureEvent is a clipboard-change notification from the capture
// collaborator. Content and ImagePath are mutually exclusive identity keys;
// the rest is detected metadata attached at ingestion time.
type CaptureEvent struct {
	Content   string
	ImagePath string

	ContentType string
	Category    string
	SourceApp   string
	SourceIcon  string
	IsImage     bool

	ImageWidth    int
	ImageHeight   int
	ImageSize     int
	DominantColor string

	Timestamp time.Time
}

// Identity returns the dedup key for the event.
func (e *CaptureEvent) Identity() string {
	return util.IdentityHash(e.Content, e.ImagePath)
}

func (e *CaptureEvent) toItem() *database.ClipboardItem {
	return &database.ClipboardItem{
		Content:     e.Content,
		ImagePath:   e.ImagePath,
		ContentType: e.ContentType,
		Category:    e.Category,
		SourceApp:   e.SourceApp,
		Hash:        e.Identity(),
		Timestamp:   e.Timestamp,
	}
}

// Gateway is the slice of the persistence layer the ingestor drives.
type Gateway interface {
	MergeOrInsert(ctx context.Context, item *database.ClipboardItem) (id int64, isNew bool, err error)
}

// Projection is the in-memory item view reconciled after each drain pass.
type Projection interface {
	Reload(ctx context.Context) error
	Patch(ctx context.Context, bumps map[int64]store.ItemPatch) error
}

// Ingestor buffers capture events, collapses duplicates by content
// identity, and drives at most one in-flight persistence operation at a
// time. A single processing flag guards the drain loop: one drain is
// active at any moment, and a notification arriving mid-drain is queued
// and handled before the drain retires.
type Ingestor struct {
	gateway    Gateway
	projection Projection
	logger     *slog.Logger

	mu         sync.Mutex
	idle       *sync.Cond
	pending    []*CaptureEvent
	queued     map[string]struct{}
	processing bool
}

func New(gateway Gateway, projection Projection, logger *slog.Logger) *Ingestor {
	ing := &Ingestor{
		gateway:    gateway,
		projection: projection,
		logger:     logger,
		queued:     make(map[string]struct{}),
	}
	ing.idle = sync.NewCond(&ing.mu)
	return ing
}

// Enqueue accepts a capture notification. If an event with the same
// identity is already waiting, the new occurrence is dropped: it is the
// same physical clipboard state observed twice. Starts a drain unless one
// is already active.
func (ing *Ingestor) Enqueue(event *CaptureEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	key := event.Identity()

	ing.mu.Lock()
	if _, dup := ing.queued[key]; dup {
		ing.mu.Unlock()
		ing.logger.Debug("dropping duplicate capture", "identity", key[:12])
		return
	}
	ing.queued[key] = struct{}{}
	ing.pending = append(ing.pending, event)

	if ing.processing {
		ing.mu.Unlock()
		return
	}
	ing.processing = true
	ing.mu.Unlock()

	go ing.drain()
}

// WaitIdle blocks until the queue is empty and no drain is active.
func (ing *Ingestor) WaitIdle() {
	ing.mu.Lock()
	for ing.processing || len(ing.pending) > 0 {
		ing.idle.Wait()
	}
	ing.mu.Unlock()
}

// drain runs passes until the queue stays empty. Within a pass, all queue
// entries sharing one identity collapse to a single persistence call (the
// latest occurrence wins, so its timestamp is the one persisted). A
// failing event is logged and skipped; the pass continues. After each pass
// the projection is reconciled: a full reload if anything was new, an
// in-place patch if only bumps occurred.
func (ing *Ingestor) drain() {
	ctx := context.Background()

	for {
		anyNew := false
		bumps := make(map[int64]store.ItemPatch)

		for {
			ing.mu.Lock()
			if len(ing.pending) == 0 {
				ing.mu.Unlock()
				break
			}
			event := ing.pending[0]
			ing.pending = ing.pending[1:]
			key := event.Identity()

			// Collapse any later occurrences of the same identity that
			// slipped in after the drain started.
			latest := event
			remaining := ing.pending[:0]
			for _, queued := range ing.pending {
				if queued.Identity() == key {
					latest = queued
					continue
				}
				remaining = append(remaining, queued)
			}
			ing.pending = remaining
			delete(ing.queued, key)
			ing.mu.Unlock()

			id, isNew, err := ing.gateway.MergeOrInsert(ctx, latest.toItem())
			if err != nil {
				// One failing item must not abort the pass.
				ing.logger.Error("failed to persist capture", "error", err)
				continue
			}

			if isNew {
				anyNew = true
			} else {
				bumps[id] = store.ItemPatch{
					Timestamp:   latest.Timestamp,
					ContentType: latest.ContentType,
					Category:    latest.Category,
				}
			}
		}

		// Reconcile the projection. A new insert needs the storage-side
		// order and defaults; bumps only need an in-place patch.
		if anyNew {
			if err := ing.projection.Reload(ctx); err != nil {
				ing.logger.Error("failed to reload items after ingest", "error", err)
			}
		} else if len(bumps) > 0 {
			if err := ing.projection.Patch(ctx, bumps); err != nil {
				ing.logger.Error("failed to patch items after ingest", "error", err)
			}
		}

		ing.mu.Lock()
		if len(ing.pending) == 0 {
			ing.processing = false
			ing.idle.Broadcast()
			ing.mu.Unlock()
			return
		}
		// Events arrived while reconciling; run another pass.
		ing.mu.Unlock()
	}
}

package clipboard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.design/x/clipboard"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/config"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/detect"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/ingest"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/util"
)

// copyEchoWindow suppresses the change notification the OS emits right
// after we write the clipboard ourselves.
const copyEchoWindow = 100 * time.Millisecond

// Monitor polls the OS clipboard and feeds capture events to the ingestor.
type Monitor struct {
	repo     *database.Repository
	ingestor *ingest.Ingestor
	config   *config.Config
	imageDir string
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastHash string
	copyEcho *util.Cooldown
}

func NewMonitor(repo *database.Repository, ingestor *ingest.Ingestor, config *config.Config, imageDir string, logger *slog.Logger) *Monitor {
	return &Monitor{
		repo:     repo,
		ingestor: ingestor,
		config:   config,
		imageDir: imageDir,
		logger:   logger,
		copyEcho: util.NewCooldown(copyEchoWindow),
	}
}

// Start begins monitoring. Calling it while already starting or running is
// a safe no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateStopped {
		m.logger.Debug("monitor already active", "state", m.state.String())
		return nil
	}
	m.state = StateStarting

	if err := clipboard.Init(); err != nil {
		m.state = StateStopped
		return fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateRunning
	m.logger.Info("clipboard monitor started")

	go m.monitorLoop(loopCtx)

	return nil
}

// Stop halts monitoring. Calling it while already stopped is a safe no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateStopped {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateStopped
	m.logger.Info("clipboard monitor stopped")
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.config.MonitorInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkClipboard()
		}
	}
}

func (m *Monitor) checkClipboard() {
	// Try to read text first
	textData := clipboard.Read(clipboard.FmtText)
	if len(textData) > 0 {
		m.processText(string(textData))
		return
	}

	// Try to read image
	imageData := clipboard.Read(clipboard.FmtImage)
	if len(imageData) > 0 {
		m.processImage(imageData)
		return
	}
}

func (m *Monitor) processText(content string) {
	if len(content) > m.config.MaxItemSize {
		m.logger.Debug("clipboard text too large", "size", len(content), "max", m.config.MaxItemSize)
		return
	}

	hash := util.IdentityHash(content, "")

	if m.swallow(hash) {
		return
	}

	contentType, category := detect.Classify(content)
	m.ingestor.Enqueue(&ingest.CaptureEvent{
		Content:     content,
		ContentType: contentType,
		Category:    category,
		Timestamp:   time.Now(),
	})
}

func (m *Monitor) processImage(data []byte) {
	if len(data) > m.config.MaxItemSize {
		m.logger.Debug("clipboard image too large", "size", len(data), "max", m.config.MaxItemSize)
		return
	}

	// Identical image bytes map to one asset path, which is the identity.
	sum := fmt.Sprintf("%x", sha256.Sum256(data))
	imagePath := filepath.Join(m.imageDir, sum+".png")

	hash := util.IdentityHash("", imagePath)
	if m.swallow(hash) {
		return
	}

	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		if err := os.MkdirAll(m.imageDir, 0755); err != nil {
			m.logger.Error("failed to create image directory", "error", err)
			return
		}
		if err := os.WriteFile(imagePath, data, 0644); err != nil {
			m.logger.Error("failed to save clipboard image", "error", err)
			return
		}
	}

	event := &ingest.CaptureEvent{
		ImagePath:   imagePath,
		ContentType: detect.TypeImage,
		Category:    detect.TypeImage,
		IsImage:     true,
		ImageSize:   len(data),
		Timestamp:   time.Now(),
	}
	if cfg, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
		event.ImageWidth = cfg.Width
		event.ImageHeight = cfg.Height
	}

	m.ingestor.Enqueue(event)
}

// swallow reports whether a clipboard state with the given identity hash
// should be ignored: either it is unchanged since the last observation, or
// it is the echo of our own write during the cooldown window.
func (m *Monitor) swallow(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hash == m.lastHash {
		return true
	}
	m.lastHash = hash

	return m.copyEcho.Active()
}

// CopyItemToClipboard writes a stored item back to the OS clipboard and
// opens the echo cooldown so the write is not re-captured.
func (m *Monitor) CopyItemToClipboard(ctx context.Context, id int64) error {
	item, err := m.repo.GetItemByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}

	switch item.ContentType {
	case detect.TypeImage:
		data, err := os.ReadFile(item.ImagePath)
		if err != nil {
			return fmt.Errorf("failed to read image asset: %w", err)
		}
		clipboard.Write(clipboard.FmtImage, data)
	default:
		clipboard.Write(clipboard.FmtText, []byte(item.Content))
	}

	m.mu.Lock()
	m.lastHash = item.Hash
	m.mu.Unlock()
	m.copyEcho.Trigger()

	m.logger.Debug("copied item to clipboard", "id", id, "type", item.ContentType)
	return nil
}

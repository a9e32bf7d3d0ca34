package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/clipboard"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/config"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/database"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/eventbus"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/ingest"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/logging"
	"github.com/teaminsighter/copy-gum-new-sub001/internal/store"
)

// Build-time variables (set by the release pipeline)
var (
	Version   = "0.0.0-dev"
	GitCommit = "unknown"
)

const AppName = "CopyGum"

// cleanupInterval is how often excess unpinned history is pruned.
const cleanupInterval = 1 * time.Hour

// App owns the clipboard pipeline: configuration, persistence, the
// in-memory stores, the ingestion queue and the OS clipboard monitor. It
// is the process-wide singleton the host shell drives through Run.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Repo       *database.Repository
	Bus        *eventbus.Bus
	Items      *store.ItemStore
	Categories *store.CategoryStore
	Tags       *store.TagStore
	Ingestor   *ingest.Ingestor
	Monitor    *clipboard.Monitor

	dataDir string
}

func New() (*App, error) {
	dataDir, err := getDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	configPath := filepath.Join(dataDir, "config.json")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		if saveErr := cfg.Save(configPath); saveErr != nil {
			slog.Warn("failed to save default config", "error", saveErr)
		}
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	repo, err := database.NewRepository(filepath.Join(dataDir, "clipboard.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	bus := eventbus.New()
	items := store.NewItemStore(repo, cfg.HistoryLimit, logger)
	categories := store.NewCategoryStore(repo, bus, items, logger)
	tags := store.NewTagStore(repo, bus, items, logger)
	ingestor := ingest.New(repo, items, logger)
	monitor := clipboard.NewMonitor(repo, ingestor, cfg, filepath.Join(dataDir, "images"), logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Repo:       repo,
		Bus:        bus,
		Items:      items,
		Categories: categories,
		Tags:       tags,
		Ingestor:   ingestor,
		Monitor:    monitor,
		dataDir:    dataDir,
	}, nil
}

// Initialize seeds catalogs, loads the item projection, and starts the
// monitor when configured to auto-start. Safe to call again after a host
// reload; the monitor guard makes the second start a no-op.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.Categories.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := a.Tags.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed tags: %w", err)
	}
	if err := a.Items.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}

	if a.Config.AutoStartMonitoring {
		if err := a.Monitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start clipboard monitor: %w", err)
		}
	}

	return nil
}

// Run initializes the pipeline and blocks until ctx is cancelled, then
// tears everything down in order: monitor, in-flight ingestion, storage.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	a.Logger.Info("started", "app", AppName, "version", Version, "data_dir", a.dataDir)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case <-ticker.C:
			if a.Config.HistoryLimit > config.UnlimitedHistory {
				if err := a.Repo.CleanupOldItems(context.Background(), a.Config.HistoryLimit); err != nil {
					a.Logger.Error("cleanup failed", "error", err)
				}
			}
		}
	}
}

func (a *App) shutdown() {
	a.Logger.Info("shutting down")
	a.Monitor.Stop()
	a.Ingestor.WaitIdle()
	if err := a.Repo.Close(); err != nil {
		a.Logger.Error("failed to close database", "error", err)
	}
	a.Logger.Info("shutdown complete")
}

func getDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dataDir := filepath.Join(homeDir, ".copygum")
	return dataDir, os.MkdirAll(dataDir, 0755)
}

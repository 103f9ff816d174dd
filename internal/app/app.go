// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/offloadops/offload/internal/cache"
	"github.com/offloadops/offload/internal/cdn"
	"github.com/offloadops/offload/internal/config"
	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/engine"
	"github.com/offloadops/offload/internal/offload"
	"github.com/offloadops/offload/internal/reconcile"
	"github.com/offloadops/offload/internal/repository/postgres"
	"github.com/offloadops/offload/internal/retrier"
	"github.com/offloadops/offload/internal/stats"
	"github.com/offloadops/offload/internal/storage"
	"github.com/rs/zerolog/log"
)

// App is the wired object graph both binaries run on.
type App struct {
	Config  *config.Config
	DB      *postgres.DB
	Storage *storage.S3Client

	Assets   *postgres.AssetRepository
	History  *postgres.HistoryRepository
	Failures *postgres.FailureRepository

	Migration      *offload.Workflow
	Reconciliation *reconcile.Workflow
	Engines        map[string]*engine.Engine

	Retrier *retrier.Queue
	Batcher *cdn.Batcher
	Stats   *stats.Aggregator
}

// Build wires the full dependency graph from configuration. Cache failures
// degrade to in-process fallbacks instead of refusing to start; database and
// object storage are required.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	store, err := storage.NewS3Client(storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
		BaseURL:   cfg.Storage.BaseURL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	keys := offload.KeyBuilder{
		Provider:    cfg.Storage.Provider,
		Environment: cfg.Storage.Environment,
		Prefix:      cfg.Storage.KeyPrefix,
	}

	stateCache := cache.NewNoopStateCache()
	indexCache := cache.NewMemoryIndexCache(time.Duration(cfg.Cache.IndexTTLSeconds) * time.Second)
	pendingPaths := cache.NewNoopPendingPathStore()
	if cfg.Cache.Enabled {
		if sc, err := cache.NewStateCache(cfg.Cache); err != nil {
			log.Warn().Err(err).Msg("redis state cache unavailable, continuing without")
		} else {
			stateCache = sc
		}
		if ic, err := cache.NewIndexCache(cfg.Cache); err != nil {
			log.Warn().Err(err).Msg("redis index cache unavailable, using in-memory index cache")
		} else {
			indexCache = ic
		}
		if ps, err := cache.NewPendingPathStore(cfg.Cache); err != nil {
			log.Warn().Err(err).Msg("redis pending path store unavailable, cdn queue will not survive restarts")
		} else {
			pendingPaths = ps
		}
	}

	assets := postgres.NewAssetRepository(db)
	history := postgres.NewHistoryRepository(db)
	failures := postgres.NewFailureRepository(db)
	stateStore := cache.NewCachedStateStore(postgres.NewStateStore(db), stateCache)

	queue := retrier.NewQueue(failures, retrier.NewLogNotifier(),
		time.Duration(cfg.Offload.RetryBaseDelaySeconds)*time.Second)

	var invalidator cdn.Invalidator = cdn.NewLogInvalidator()
	batcher := cdn.NewBatcher(invalidator, pendingPaths,
		time.Duration(cfg.CDN.FlushDelaySeconds)*time.Second)
	if err := batcher.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore pending cdn paths")
	}

	migration := offload.NewWorkflow(assets, history, queue, store, batcher, keys, cfg.Offload.UploadDir)
	queue.Register(domain.OpUpload, migration.RetryUpload)
	queue.Register(domain.OpDelete, migration.RetryDelete)

	scanner := reconcile.NewScanner(store, keys)
	reconciliation := reconcile.NewWorkflow(assets, history, scanner, indexCache, store)

	engines := map[string]*engine.Engine{
		offload.WorkflowName:   engine.New(migration, stateStore),
		reconcile.WorkflowName: engine.New(reconciliation, stateStore),
	}

	aggregator := stats.NewAggregator(assets, history, failures)
	for name, eng := range engines {
		aggregator.Track(name, eng)
	}

	return &App{
		Config:         cfg,
		DB:             db,
		Storage:        store,
		Assets:         assets,
		History:        history,
		Failures:       failures,
		Migration:      migration,
		Reconciliation: reconciliation,
		Engines:        engines,
		Retrier:        queue,
		Batcher:        batcher,
		Stats:          aggregator,
	}, nil
}

// Close flushes the invalidation queue and releases connections.
func (a *App) Close(ctx context.Context) {
	if err := a.Batcher.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("final cdn flush failed")
	}
	if err := a.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("database close failed")
	}
}

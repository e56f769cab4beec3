// Package vectordb is the Coordinator façade: it owns Storage, AnnIndex,
// VectorCache, EmbeddingCache and BatchCoalescer directly, with no
// subsystem holding a back-reference to another, and enforces the
// ordering rules that keep them in agreement across a pluggable set of
// storage and index backends.
package vectordb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/vectordb/embedding"
	"github.com/thebtf/vectordb/internal/annindex"
	"github.com/thebtf/vectordb/internal/annindex/flatindex"
	"github.com/thebtf/vectordb/internal/cache"
	"github.com/thebtf/vectordb/internal/coalescer"
	"github.com/thebtf/vectordb/internal/loader"
	"github.com/thebtf/vectordb/internal/storage"
	"github.com/thebtf/vectordb/internal/storage/boltstore"
	"github.com/thebtf/vectordb/internal/storage/sqlitestore"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

// DB is the VectorDb façade: the single entry point callers use to
// insert, search, update, delete, export, and import vector records.
// Exactly one logical writer may mutate a DB at a time; concurrent
// readers (Search, Size, Export) are always safe.
type DB struct {
	cfg    Config
	logger zerolog.Logger

	storage        storage.Storage
	index          annindex.Index
	vectorCache    *cache.VectorCache
	embeddingCache *cache.EmbeddingCache
	coalescer      *coalescer.BatchCoalescer
	loader         *loader.Loader

	genMu      sync.Mutex
	generator  EmbeddingGenerator
	genFactory func() (EmbeddingGenerator, error)

	llm LlmProvider

	ownsStorage bool

	initMu      sync.Mutex
	initialized bool
	closed      bool
}

// Option customizes a DB before Initialize opens its backing resources.
type Option func(*DB)

// WithStorage overrides the Storage backend selected by Config.Storage,
// useful for tests (an in-memory fake) or a backend this module doesn't
// ship. The DB takes ownership and closes it in Dispose.
func WithStorage(s storage.Storage) Option {
	return func(db *DB) { db.storage = s }
}

// WithIndex overrides the AnnIndex backend (e.g. an HNSW/IVF plug-in)
// instead of the shipped flatindex.
func WithIndex(idx annindex.Index) Option {
	return func(db *DB) { db.index = idx }
}

// WithEmbeddingGenerator supplies a ready-to-use EmbeddingGenerator
// directly, bypassing the embedding.Registry and LazyLoadModels entirely.
func WithEmbeddingGenerator(g EmbeddingGenerator) Option {
	return func(db *DB) { db.generator = g }
}

// WithLlmProvider attaches an optional LlmProvider for RAG callers built
// on top of DB. The Coordinator never calls it itself.
func WithLlmProvider(p LlmProvider) Option {
	return func(db *DB) { db.llm = p }
}

// WithLogger overrides the zerolog.Logger used for this DB's diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// New constructs a DB from cfg. It validates the configuration but does
// not open any resources — call Initialize before using the database.
func New(cfg *Config, opts ...Option) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db := &DB{
		cfg:    *cfg,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(db)
	}

	if db.generator == nil {
		db.genFactory = func() (EmbeddingGenerator, error) {
			// The static generator can produce any dimensionality, so build
			// it to match the index rather than at its registry default.
			if cfg.Embedding.Model == embedding.StaticVersion {
				return embedding.NewStaticGenerator(cfg.Index.Dimensions), nil
			}
			return embedding.NewDefaultRegistry().Get(cfg.Embedding.Model)
		}
	}

	return db, nil
}

// Initialize opens Storage, builds (or loads) the AnnIndex, and — unless
// LazyLoadModels is set — loads the embedding generator. It is idempotent:
// a second call is a no-op returning nil. Any failure triggers cleanup
// before surfacing ErrInitError.
func (db *DB) Initialize(ctx context.Context) error {
	db.initMu.Lock()
	defer db.initMu.Unlock()
	if db.initialized {
		return nil
	}

	if err := db.doInitialize(ctx); err != nil {
		db.cleanup()
		return vdberrors.Wrap(vdberrors.ErrInitError, "initialize", err)
	}
	db.initialized = true
	return nil
}

func (db *DB) doInitialize(ctx context.Context) error {
	if db.storage == nil {
		s, err := db.openStorage()
		if err != nil {
			return err
		}
		db.storage = s
		db.ownsStorage = true
	}

	if db.index == nil {
		idx, err := flatindex.New(db.cfg.Index.Dimensions, annindex.Metric(db.cfg.Index.Metric))
		if err != nil {
			return err
		}
		db.index = idx
	}

	count, err := db.storage.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count existing records: %v", vdberrors.ErrStorageError, err)
	}
	if count > 0 {
		if err := db.rebuildIndex(ctx); err != nil {
			return err
		}
	}

	cacheBytes := db.cfg.Performance.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = DefaultConfig().Performance.CacheBytes
	}
	strategy := cache.StrategyAlways
	if db.cfg.Performance.CacheStrategy == "onDemand" {
		strategy = cache.StrategyOnDemand
	}
	db.vectorCache = cache.NewVectorCacheStrategy(cacheBytes, strategy)

	entries := db.cfg.Performance.EmbeddingCacheEntries
	if entries <= 0 {
		entries = DefaultConfig().Performance.EmbeddingCacheEntries
	}
	db.embeddingCache = cache.NewEmbeddingCache(entries, 0)

	maxBatch := db.cfg.Performance.BatchMaxSize
	if maxBatch <= 0 {
		maxBatch = DefaultConfig().Performance.BatchMaxSize
	}
	flushMs := db.cfg.Performance.BatchFlushMs
	if flushMs <= 0 {
		flushMs = DefaultConfig().Performance.BatchFlushMs
	}
	db.coalescer = coalescer.New(db.storage, coalescer.Config{
		MaxBatchSize:  maxBatch,
		FlushInterval: time.Duration(flushMs) * time.Millisecond,
		OnIndexPut: func(ctx context.Context, r *models.VectorRecord) error {
			return db.index.Add(ctx, toIndexRecord(r))
		},
		OnIndexDelete: func(ctx context.Context, id string) error {
			return db.index.Remove(ctx, id)
		},
	})

	db.loader = loader.New(db.storage)

	if db.generator != nil {
		if got := db.generator.Dimensions(); got != db.cfg.Index.Dimensions {
			return fmt.Errorf("%w: embedding generator produces %d-dim vectors, index configured for %d",
				vdberrors.ErrDimensionMismatch, got, db.cfg.Index.Dimensions)
		}
	} else if !db.cfg.Performance.LazyLoadModels {
		if _, err := db.ensureGenerator(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) openStorage() (storage.Storage, error) {
	switch db.cfg.Storage.Backend {
	case "", "bolt":
		return boltstore.Open(db.cfg.Storage.DBName)
	case "sqlite":
		return sqlitestore.Open(sqlitestore.Config{Path: db.cfg.Storage.DBName})
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", vdberrors.ErrInvalidConfig, db.cfg.Storage.Backend)
	}
}

// cleanup releases whatever doInitialize managed to open before failing.
func (db *DB) cleanup() {
	if db.coalescer != nil {
		_ = db.coalescer.Close(context.Background())
		db.coalescer = nil
	}
	if db.ownsStorage && db.storage != nil {
		_ = db.storage.Close()
	}
	db.storage = nil
	db.index = nil
	db.vectorCache = nil
	db.embeddingCache = nil
	db.loader = nil
}

// requireInitialized is the guard every public operation but Initialize
// and Dispose starts with.
func (db *DB) requireInitialized() error {
	if db.closed {
		return vdberrors.ErrNotInitialized
	}
	if !db.initialized {
		return vdberrors.ErrNotInitialized
	}
	return nil
}

// rebuildIndex discards the AnnIndex's membership and rebuilds it from
// Storage in one pass.
func (db *DB) rebuildIndex(ctx context.Context) error {
	records, err := db.storage.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: load records for rebuild: %v", vdberrors.ErrStorageError, err)
	}
	if err := db.index.Clear(); err != nil {
		return err
	}
	return db.index.AddBatch(ctx, toIndexRecords(records))
}

func toIndexRecord(r *models.VectorRecord) annindex.Record {
	return annindex.Record{ID: r.ID, Vector: r.Vector, Metadata: r.Metadata}
}

func toIndexRecords(rs []*models.VectorRecord) []annindex.Record {
	out := make([]annindex.Record, len(rs))
	for i, r := range rs {
		out[i] = toIndexRecord(r)
	}
	return out
}

// Clear flushes the coalescer and empties Storage, the AnnIndex, and both
// caches.
func (db *DB) Clear(ctx context.Context) error {
	if err := db.requireInitialized(); err != nil {
		return err
	}
	if err := db.coalescer.Flush(ctx); err != nil {
		db.logger.Warn().Err(err).Msg("vectordb: flush before clear reported a pending-batch error")
	}
	if err := db.storage.Clear(ctx); err != nil {
		return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "clear", err)
	}
	if err := db.index.Clear(); err != nil {
		return vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "clear", err)
	}
	db.vectorCache.Clear()
	db.embeddingCache.Clear()
	return nil
}

// Size returns Storage's current record count. It drains the coalescer
// first so a caller counting right after an Insert or Delete sees its own
// writes, even when their durable half is still queued.
func (db *DB) Size(ctx context.Context) (int64, error) {
	if err := db.requireInitialized(); err != nil {
		return 0, err
	}
	if err := db.coalescer.Flush(ctx); err != nil {
		return 0, vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "size", err)
	}
	n, err := db.storage.Count(ctx)
	if err != nil {
		return 0, vdberrors.WrapUnlessTyped(vdberrors.ErrStorageError, "size", err)
	}
	return n, nil
}

// Dispose flushes the coalescer, closes Storage, releases the AnnIndex and
// embedding generator, and clears both caches. A DB is not usable after
// Dispose; further calls return ErrNotInitialized.
func (db *DB) Dispose(ctx context.Context) error {
	db.initMu.Lock()
	defer db.initMu.Unlock()
	if !db.initialized || db.closed {
		return nil
	}

	var firstErr error
	if err := db.coalescer.Close(ctx); err != nil {
		firstErr = err
	}
	if db.ownsStorage {
		if err := db.storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.genMu.Lock()
	if db.generator != nil {
		_ = db.generator.Close()
	}
	db.genMu.Unlock()
	db.vectorCache.Clear()
	db.embeddingCache.Clear()

	db.closed = true
	db.initialized = false
	return firstErr
}

// Package sqlitestore implements the storage.Storage capability on top of
// modernc.org/sqlite (pure Go, no cgo): WAL journal mode, a
// prepared-statement cache, and a minimal migration runner.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/thebtf/vectordb/internal/storage"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS vectordb_records (
	id        TEXT PRIMARY KEY,
	vector    BLOB NOT NULL,
	metadata  TEXT NOT NULL,
	timestamp INTEGER NOT NULL
)`

// Config holds configuration for the sqlite store.
type Config struct {
	Path     string
	MaxConns int
}

// Store is a modernc.org/sqlite-backed storage.Storage.
type Store struct {
	db        *sql.DB
	stmtCache map[string]*sql.Stmt
	stmtMu    sync.RWMutex
}

// Open opens (creating and migrating if necessary) a sqlite database.
func Open(cfg Config) (*Store, error) {
	connStr := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", vdberrors.ErrStorageUnavailable, cfg.Path, err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", vdberrors.ErrStorageUnavailable, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", vdberrors.ErrStorageUnavailable, err)
	}

	log.Debug().Str("path", cfg.Path).Msg("sqlitestore: opened")
	return &Store{db: db, stmtCache: make(map[string]*sql.Stmt)}, nil
}

func (s *Store) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	stmt, ok := s.stmtCache[query]
	s.stmtMu.RUnlock()
	if ok {
		return stmt, nil
	}

	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if stmt, ok := s.stmtCache[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.stmtCache[query] = stmt
	return stmt, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func (s *Store) Put(ctx context.Context, r *models.VectorRecord) error {
	return s.PutBatch(ctx, []*models.VectorRecord{r})
}

const upsertSQL = `INSERT INTO vectordb_records (id, vector, metadata, timestamp) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET vector = excluded.vector, metadata = excluded.metadata, timestamp = excluded.timestamp`

func (s *Store) PutBatch(ctx context.Context, rs []*models.VectorRecord) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", vdberrors.ErrStorageError, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", vdberrors.ErrStorageError, err)
	}
	defer stmt.Close()

	for _, r := range rs {
		metaJSON, mErr := json.Marshal(r.Metadata)
		if mErr != nil {
			err = mErr
			return fmt.Errorf("%w: marshal metadata for %s: %v", vdberrors.ErrSerialization, r.ID, mErr)
		}
		if _, err = stmt.ExecContext(ctx, r.ID, encodeVector(r.Vector), string(metaJSON), r.Timestamp); err != nil {
			return fmt.Errorf("%w: upsert %s: %v", vdberrors.ErrStorageError, r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", vdberrors.ErrStorageError, err)
	}
	return nil
}

func (s *Store) scanRow(row interface{ Scan(...any) error }) (*models.VectorRecord, error) {
	var id, metaJSON string
	var vecBlob []byte
	var ts int64
	if err := row.Scan(&id, &vecBlob, &metaJSON, &ts); err != nil {
		return nil, err
	}
	var meta models.Metadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("%w: unmarshal metadata for %s: %v", vdberrors.ErrSerialization, id, err)
	}
	return &models.VectorRecord{ID: id, Vector: decodeVector(vecBlob), Metadata: meta, Timestamp: ts}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.VectorRecord, error) {
	stmt, err := s.getStmt(ctx, "SELECT id, vector, metadata, timestamp FROM vectordb_records WHERE id = ?")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vdberrors.ErrStorageError, err)
	}
	rec, err := s.scanRow(stmt.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", vdberrors.ErrStorageError, id, err)
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vectordb_records WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", vdberrors.ErrStorageError, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", vdberrors.ErrStorageError, err)
	}
	return n > 0, nil
}

func (s *Store) GetAll(ctx context.Context) ([]*models.VectorRecord, error) {
	var out []*models.VectorRecord
	err := s.Scan(ctx, func(r *models.VectorRecord) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.VectorRecord{}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectordb_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", vdberrors.ErrStorageError, err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vectordb_records"); err != nil {
		return fmt.Errorf("%w: clear: %v", vdberrors.ErrStorageError, err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, visit storage.VisitFunc) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, vector, metadata, timestamp FROM vectordb_records ORDER BY timestamp, id")
	if err != nil {
		return fmt.Errorf("%w: scan: %v", vdberrors.ErrStorageError, err)
	}
	defer rows.Close()

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rec, err := s.scanRow(rows)
		if err != nil {
			return fmt.Errorf("%w: scan row: %v", vdberrors.ErrStorageError, err)
		}
		if err := visit(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmtCache {
		_ = stmt.Close()
	}
	s.stmtCache = nil
	s.stmtMu.Unlock()
	return s.db.Close()
}

var _ storage.Storage = (*Store)(nil)

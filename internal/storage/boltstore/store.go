// Package boltstore implements the storage.Storage capability on top of
// go.etcd.io/bbolt, the default embedded backend for this module. bbolt's
// own single-writer transaction model lines up with this module's
// single-writer discipline (WAL-equivalent durability, one bucket per
// logical table).
package boltstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/thebtf/vectordb/internal/storage"
	"github.com/thebtf/vectordb/pkg/models"
	"github.com/thebtf/vectordb/vdberrors"
)

var recordsBucket = []byte("vectordb_records")

// Store is a bbolt-backed storage.Storage.
type Store struct {
	db      *bolt.DB
	path    string
	watcher *fsnotify.Watcher
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", vdberrors.ErrStorageUnavailable, path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create bucket: %v", vdberrors.ErrStorageUnavailable, err)
	}
	log.Debug().Str("path", path).Msg("boltstore: opened")
	s := &Store{db: db, path: path}
	s.watchExternalReplace()
	return s, nil
}

// watchExternalReplace starts a best-effort watch on path's directory for
// external replacement of the db file (e.g. another process restoring an
// export into the same path). This module's single-writer non-goal means
// the watcher is advisory only: it logs, it never reopens the database or
// invalidates a caller's in-memory AnnIndex/VectorCache for them. A watcher
// that fails to start (no inotify support, directory removed) is not fatal.
func (s *Store) watchExternalReplace() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug().Err(err).Msg("boltstore: external-replace watch unavailable")
		return
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("boltstore: watch directory failed")
		_ = w.Close()
		return
	}
	s.watcher = w
	go func() {
		base := filepath.Base(s.path)
		for event := range w.Events {
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Warn().Str("path", s.path).Msg("boltstore: database file changed on disk outside this handle; in-memory index and caches may now be stale")
			}
		}
	}()
}

func (s *Store) Put(ctx context.Context, r *models.VectorRecord) error {
	return s.PutBatch(ctx, []*models.VectorRecord{r})
}

func (s *Store) PutBatch(ctx context.Context, rs []*models.VectorRecord) error {
	if len(rs) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for _, r := range rs {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("%w: marshal %s: %v", vdberrors.ErrSerialization, r.ID, err)
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: put batch: %v", vdberrors.ErrStorageError, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.VectorRecord, error) {
	var rec *models.VectorRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(recordsBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		var r models.VectorRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("%w: unmarshal %s: %v", vdberrors.ErrSerialization, id, err)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		existed = b.Get([]byte(id)) != nil
		if !existed {
			return nil
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", vdberrors.ErrStorageError, id, err)
	}
	return existed, nil
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
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(recordsBucket).Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", vdberrors.ErrStorageError, err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(recordsBucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: clear: %v", vdberrors.ErrStorageError, err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, visit storage.VisitFunc) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var r models.VectorRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("%w: unmarshal %s: %v", vdberrors.ErrSerialization, string(k), err)
			}
			if err := visit(&r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	return s.db.Close()
}

var _ storage.Storage = (*Store)(nil)

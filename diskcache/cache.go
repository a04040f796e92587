// Package diskcache persists normalized records for gqlstore, so that a new
// Environment can be restored from what an earlier one fetched.
package diskcache

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"go.etcd.io/bbolt"

	"github.com/andreyvit/gqlstore"
)

const (
	recordsBucket   = "records"
	rootCallsBucket = "rootcalls"
)

var bucketNames = []string{recordsBucket, rootCallsBucket}

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// Disabling a kind of write makes the corresponding writer nil, so
	// the environment skips persisting those writes.
	DisableQueryWrites    bool
	DisableMutationWrites bool
}

// Cache is a gqlstore.CacheManager over a Bolt file. Writes go straight to
// the file, one transaction each.
type Cache struct {
	bdb     *bbolt.DB
	logger  *slog.Logger
	verbose bool

	queryWriter    gqlstore.CacheWriter
	mutationWriter gqlstore.CacheWriter

	WriteCount     atomic.Uint64
	ReadCount      atomic.Uint64
	WriteFailCount atomic.Uint64
}

var _ gqlstore.CacheManager = (*Cache)(nil)

var errMissingBucket = errors.New("bucket missing")

// Open opens or creates a cache file.
func Open(path string, opt Options) (*Cache, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, perrors.Wrapf(err, perrors.CodeDatabase, "diskcache: opening %s", path)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range bucketNames {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, perrors.Wrap(err, perrors.CodeDatabase, "diskcache: preparing buckets")
	}

	c := &Cache{
		bdb:     bdb,
		logger:  opt.Logger,
		verbose: opt.Verbose,
	}
	if !opt.DisableQueryWrites {
		c.queryWriter = &cacheWriter{c: c, kind: "query"}
	}
	if !opt.DisableMutationWrites {
		c.mutationWriter = &cacheWriter{c: c, kind: "mutation"}
	}
	return c, nil
}

func (c *Cache) Close() error {
	return c.bdb.Close()
}

func (c *Cache) QueryWriter() gqlstore.CacheWriter {
	return c.queryWriter
}

func (c *Cache) MutationWriter() gqlstore.CacheWriter {
	return c.mutationWriter
}

// ReadNode loads a record. A record stored as deleted comes back found with
// a nil record.
func (c *Cache) ReadNode(id gqlstore.DataID) (*gqlstore.Record, bool, error) {
	c.ReadCount.Add(1)
	var rec *gqlstore.Record
	var found bool
	err := c.view(recordsBucket, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("diskcache: reading %s: %w", id, err)
	}
	if rec != nil {
		rec.ID = id
	}
	return rec, found, nil
}

func (c *Cache) ReadRootCall(storageKey, identArg string) (gqlstore.DataID, bool, error) {
	c.ReadCount.Add(1)
	var id gqlstore.DataID
	var found bool
	err := c.view(rootCallsBucket, func(b *bbolt.Bucket) error {
		if v := b.Get(rootCallKey(storageKey, identArg)); v != nil {
			id, found = gqlstore.DataID(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("diskcache: reading root call %s: %w", storageKey, err)
	}
	return id, found, nil
}

func (c *Cache) writeNode(id gqlstore.DataID, rec *gqlstore.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return c.update(recordsBucket, func(b *bbolt.Bucket) error {
		return b.Put([]byte(id), data)
	})
}

func (c *Cache) writeRootCall(storageKey, identArg string, id gqlstore.DataID) error {
	return c.update(rootCallsBucket, func(b *bbolt.Bucket) error {
		return b.Put(rootCallKey(storageKey, identArg), []byte(id))
	})
}

// Clear removes every stored record and root call.
func (c *Cache) Clear() error {
	return c.bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range bucketNames {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

type Stats struct {
	Records   int
	RootCalls int
	Size      int64
}

func (c *Cache) Stats() (Stats, error) {
	var s Stats
	err := c.bdb.View(func(tx *bbolt.Tx) error {
		s.Records = tx.Bucket([]byte(recordsBucket)).Stats().KeyN
		s.RootCalls = tx.Bucket([]byte(rootCallsBucket)).Stats().KeyN
		s.Size = tx.Size()
		return nil
	})
	return s, err
}

func (c *Cache) view(bucket string, f func(b *bbolt.Bucket) error) error {
	return c.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s: %w", bucket, errMissingBucket)
		}
		return f(b)
	})
}

func (c *Cache) update(bucket string, f func(b *bbolt.Bucket) error) error {
	return c.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s: %w", bucket, errMissingBucket)
		}
		return f(b)
	})
}

// cacheWriter reports failures through the log, since store writes cannot
// fail on account of the cache.
type cacheWriter struct {
	c    *Cache
	kind string
}

func (w *cacheWriter) WriteNode(id gqlstore.DataID, rec *gqlstore.Record) {
	w.c.WriteCount.Add(1)
	if err := w.c.writeNode(id, rec); err != nil {
		w.c.WriteFailCount.Add(1)
		w.c.logger.Error("diskcache: write failed", "kind", w.kind, "id", id, "err", err)
		return
	}
	if w.c.verbose {
		w.c.logger.Debug("diskcache: wrote record", "kind", w.kind, "id", id, "deleted", rec == nil)
	}
}

func (w *cacheWriter) WriteRootCall(storageKey, identArg string, id gqlstore.DataID) {
	w.c.WriteCount.Add(1)
	if err := w.c.writeRootCall(storageKey, identArg, id); err != nil {
		w.c.WriteFailCount.Add(1)
		w.c.logger.Error("diskcache: root call write failed", "kind", w.kind, "storageKey", storageKey, "err", err)
	}
}

// Package keyValStore wraps the Badger instance that backs the link cache.
// All cache tables live in one keyspace separated by short prefixes; every
// mutation happens inside an explicit Badger transaction so a failed commit
// leaves prior state untouched.
package keyValStore

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// schemaVersion is bumped whenever the logical table layout changes. A
// mismatch at open drops every table and starts empty; there is no migration.
const schemaVersion uint64 = 1

// ErrDirectoryLocked reports that another process holds the store directory.
// Unlike a data error this is usually resolvable by closing the other
// connection.
var ErrDirectoryLocked = fmt.Errorf("keyValStore: store directory locked by another connection")

// ErrStoreClosed reports use of a store handle that was already closed.
var ErrStoreClosed = fmt.Errorf("keyValStore: store closed")

type StoreConfig struct {
	Path             string // data directory, created if missing
	MinimumFreeSpace int    // in GB, 0 disables the check
	Logger           *logrus.Logger
}

type KeyValStore struct {
	config   StoreConfig
	log      *logrus.Logger
	badgerDB *badger.DB

	// seqMu guards linkSeq, which Close and DropAll swap out while other
	// goroutines may still hold the store.
	seqMu   sync.Mutex
	linkSeq *badger.Sequence

	readCounter  uint64
	writeCounter uint64
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log := config.Logger

	if config.Path == "" {
		return nil, fmt.Errorf("keyValStore: no path configured")
	}
	if err := os.MkdirAll(config.Path, 0o700); err != nil {
		return nil, fmt.Errorf("error creating store directory %s: %w", config.Path, err)
	}

	if err := checkFreeSpace(log, config.Path, config.MinimumFreeSpace); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // Set max size of each value log file to 100MB
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Cannot acquire directory lock") {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryLocked, config.Path)
		}
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Path, err)
	}

	k := &KeyValStore{
		config:   config,
		log:      log,
		badgerDB: db,
	}

	if err := k.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := k.openSequences(); err != nil {
		db.Close()
		return nil, err
	}

	return k, nil
}

// View runs fn inside a read-only transaction.
func (k *KeyValStore) View(fn func(txn *badger.Txn) error) error {
	atomic.AddUint64(&k.readCounter, 1)
	return k.badgerDB.View(fn)
}

// Update runs fn inside a read-write transaction. The transaction commits
// only if fn returns nil; any error aborts it wholesale.
func (k *KeyValStore) Update(fn func(txn *badger.Txn) error) error {
	atomic.AddUint64(&k.writeCounter, 1)
	return k.badgerDB.Update(fn)
}

// NextLinkSequence returns the next surrogate key for the link mirror table.
// After Close or during a DropAll it fails with ErrStoreClosed.
func (k *KeyValStore) NextLinkSequence() (uint64, error) {
	k.seqMu.Lock()
	seq := k.linkSeq
	k.seqMu.Unlock()
	if seq == nil {
		return 0, ErrStoreClosed
	}
	return seq.Next()
}

// PrefixScan calls fn for every key/value under prefix in key order. fn
// receives copies it may retain. Returning an error stops the scan.
func (k *KeyValStore) PrefixScan(prefix []byte, fn func(key, value []byte) error) error {
	return k.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DropAll wipes every table and restores the schema record. In-flight
// sequences are released first so Badger accepts the drop.
func (k *KeyValStore) DropAll() error {
	if err := k.releaseSequences(); err != nil {
		return err
	}

	if err := k.badgerDB.DropAll(); err != nil {
		return fmt.Errorf("error dropping store: %w", err)
	}

	if err := k.writeSchemaVersion(); err != nil {
		return err
	}
	if err := k.openSequences(); err != nil {
		return err
	}

	k.log.Info("store dropped and recreated empty")
	return nil
}

// GarbageCollect syncs, flattens and runs value log GC. Safe to call
// periodically; ErrNoRewrite from Badger is not an error here.
func (k *KeyValStore) GarbageCollect() error {
	if err := k.badgerDB.Sync(); err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	if err := k.badgerDB.Flatten(runtime.NumCPU()); err != nil {
		return fmt.Errorf("error flattening db: %w", err)
	}

	if err := k.badgerDB.RunValueLogGC(0.1); err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("error cleaning db: %w", err)
	}
	return nil
}

func (k *KeyValStore) Close() error {
	if err := k.releaseSequences(); err != nil {
		k.log.WithField("error", err).Warn("error releasing link sequence on close")
	}
	return k.badgerDB.Close()
}

// Stats returns the read and write transaction counts since open.
func (k *KeyValStore) Stats() (reads, writes uint64) {
	return atomic.LoadUint64(&k.readCounter), atomic.LoadUint64(&k.writeCounter)
}

func (k *KeyValStore) openSequences() error {
	seq, err := k.badgerDB.GetSequence(KeyLinkSequence, 128)
	if err != nil {
		return fmt.Errorf("error opening link sequence: %w", err)
	}
	k.seqMu.Lock()
	k.linkSeq = seq
	k.seqMu.Unlock()
	return nil
}

// releaseSequences detaches the sequence handle before releasing it, so a
// concurrent NextLinkSequence sees ErrStoreClosed instead of a stale handle.
func (k *KeyValStore) releaseSequences() error {
	k.seqMu.Lock()
	seq := k.linkSeq
	k.linkSeq = nil
	k.seqMu.Unlock()

	if seq == nil {
		return nil
	}
	if err := seq.Release(); err != nil {
		return fmt.Errorf("error releasing link sequence: %w", err)
	}
	return nil
}

func (k *KeyValStore) ensureSchema() error {
	var stored []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(KeySchemaVersion)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("error reading schema version: %w", err)
	}

	current := schemaVersionBytes()
	if stored == nil {
		return k.writeSchemaVersion()
	}
	if !bytes.Equal(stored, current) {
		k.log.WithFields(logrus.Fields{
			"stored":  string(stored),
			"current": string(current),
		}).Warn("schema version mismatch, invalidating cache")
		if err := k.badgerDB.DropAll(); err != nil {
			return fmt.Errorf("error dropping outdated store: %w", err)
		}
		return k.writeSchemaVersion()
	}
	return nil
}

func (k *KeyValStore) writeSchemaVersion() error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(KeySchemaVersion, schemaVersionBytes())
	})
	if err != nil {
		return fmt.Errorf("error writing schema version: %w", err)
	}
	return nil
}

func schemaVersionBytes() []byte {
	return []byte(fmt.Sprintf("%d", schemaVersion))
}

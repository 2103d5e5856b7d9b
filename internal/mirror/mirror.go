// Package mirror keeps the local copy of previously fetched edge records in
// an ordered (sourceId, targetId, seq) key space, so link queries resolve
// against two-dimensional prefix range scans instead of the upstream source.
package mirror

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/graphmirror/linkcache/internal/keyValStore"
	"github.com/graphmirror/linkcache/pkg/provider"
)

type Store struct {
	kv *keyValStore.KeyValStore
}

func New(kv *keyValStore.KeyValStore) *Store {
	return &Store{kv: kv}
}

// AppendLinks writes fetched edge records in one transaction, keyed by
// (sourceId, targetId, seq). Records already present for their (source,
// target) pair are skipped, so overlapping fetches stay idempotent.
func (s *Store) AppendLinks(links []provider.LinkRecord) error {
	if len(links) == 0 {
		return nil
	}

	type pending struct {
		record  provider.LinkRecord
		seq     uint64
		encoded []byte
	}
	items := make([]pending, 0, len(links))
	for _, link := range links {
		raw, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("error encoding link record: %w", err)
		}
		encoded, err := keyValStore.EncodeValue(raw)
		if err != nil {
			return err
		}
		seq, err := s.kv.NextLinkSequence()
		if err != nil {
			return fmt.Errorf("error allocating link sequence: %w", err)
		}
		items = append(items, pending{record: link, seq: seq, encoded: encoded})
	}

	err := s.kv.Update(func(txn *badger.Txn) error {
		for _, item := range items {
			exists, err := pairHasRecord(txn, item.record)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			key := linkKey(item.record.SourceID, item.record.TargetID, item.seq)
			if err := txn.Set(key, item.encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error appending links to mirror: %w", err)
	}
	return nil
}

// Scan walks the mirror rows of every source in order and returns the edge
// records whose (source, target) pair passes include.
func (s *Store) Scan(sources []string, include func(source, target string) bool) ([]provider.LinkRecord, error) {
	var out []provider.LinkRecord
	for _, source := range sources {
		prefix := sourcePrefix(source)
		err := s.kv.PrefixScan(prefix, func(key, value []byte) error {
			parts := keyValStore.SplitKey(keyValStore.PrefixLinks, key)
			if len(parts) != 3 {
				return fmt.Errorf("malformed mirror key %q", key)
			}
			target := parts[1]
			if !include(source, target) {
				return nil
			}

			raw, err := keyValStore.DecodeValue(value)
			if err != nil {
				return err
			}
			var record provider.LinkRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return fmt.Errorf("error decoding link record: %w", err)
			}
			out = append(out, record)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error scanning mirror for %s: %w", source, err)
		}
	}
	return out, nil
}

func pairHasRecord(txn *badger.Txn, record provider.LinkRecord) (bool, error) {
	prefix := keyValStore.TableKey(keyValStore.PrefixLinks, record.SourceID, record.TargetID)
	prefix = append(prefix, keyValStore.Separator)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		value, err := it.Item().ValueCopy(nil)
		if err != nil {
			return false, err
		}
		raw, err := keyValStore.DecodeValue(value)
		if err != nil {
			return false, err
		}
		var stored provider.LinkRecord
		if err := json.Unmarshal(raw, &stored); err != nil {
			return false, err
		}
		if stored.TypeID == record.TypeID {
			return true, nil
		}
	}
	return false, nil
}

func linkKey(source, target string, seq uint64) []byte {
	var suffix [8]byte
	binary.BigEndian.PutUint64(suffix[:], seq)
	return keyValStore.TableKey(keyValStore.PrefixLinks, source, target, hex.EncodeToString(suffix[:]))
}

func sourcePrefix(source string) []byte {
	prefix := keyValStore.TableKey(keyValStore.PrefixLinks, source)
	return append(prefix, keyValStore.Separator)
}

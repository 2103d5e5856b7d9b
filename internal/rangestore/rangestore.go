// Package rangestore persists the endpoint→range assignments of the link
// cache. Ranges are content-addressed: the key of a range is a pure function
// of its member set, so structurally equal ranges share one stored record.
package rangestore

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/graphmirror/linkcache/internal/keyValStore"
	"github.com/graphmirror/linkcache/pkg/adjacency"
)

type Store struct {
	kv *keyValStore.KeyValStore
}

func New(kv *keyValStore.KeyValStore) *Store {
	return &Store{kv: kv}
}

// RangeKeyOf returns the content-addressed key of a range.
func RangeKeyOf(r adjacency.Range) string {
	return r.Key()
}

// LookupEndpoints returns the current range key per endpoint. Endpoints with
// no assignment are absent from the result.
func (s *Store) LookupEndpoints(endpoints []string) (map[string]string, error) {
	assignments := make(map[string]string)
	err := s.kv.View(func(txn *badger.Txn) error {
		for _, endpoint := range endpoints {
			item, err := txn.Get(keyValStore.TableKey(keyValStore.PrefixLinkBlocks, endpoint))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			assignments[endpoint] = string(value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error looking up endpoint assignments: %w", err)
	}
	return assignments, nil
}

// ResolveRanges returns the member sets for the given range keys. Unknown
// keys are absent from the result.
func (s *Store) ResolveRanges(keys []string) (map[string]adjacency.Range, error) {
	ranges := make(map[string]adjacency.Range)
	err := s.kv.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			if _, done := ranges[key]; done {
				continue
			}
			item, err := txn.Get(keyValStore.TableKey(keyValStore.PrefixLinkRanges, key))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			stored, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			members, err := decodeMembers(stored)
			if err != nil {
				return err
			}
			ranges[key] = adjacency.NewRange(members...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error resolving ranges: %w", err)
	}
	return ranges, nil
}

// Commit writes new endpoint assignments and newly introduced range contents
// in one transaction, then garbage-collects any range key touched by this
// commit that lost its last referent. Either everything applies or nothing
// does.
func (s *Store) Commit(assignments map[string]string, newRanges map[string]adjacency.Range) error {
	err := s.kv.Update(func(txn *badger.Txn) error {
		touched := make(map[string]struct{})

		for endpoint, rangeKey := range assignments {
			blockKey := keyValStore.TableKey(keyValStore.PrefixLinkBlocks, endpoint)

			var previous string
			item, err := txn.Get(blockKey)
			if err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			if err == nil {
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				previous = string(value)
			}
			if previous == rangeKey {
				continue
			}

			if err := txn.Set(blockKey, []byte(rangeKey)); err != nil {
				return err
			}
			if err := txn.Set(keyValStore.TableKey(keyValStore.PrefixBlockIndex, rangeKey, endpoint), nil); err != nil {
				return err
			}
			if previous != "" {
				if err := txn.Delete(keyValStore.TableKey(keyValStore.PrefixBlockIndex, previous, endpoint)); err != nil {
					return err
				}
				touched[previous] = struct{}{}
			}
		}

		for rangeKey, r := range newRanges {
			encoded, err := encodeMembers(r.Members())
			if err != nil {
				return err
			}
			if err := txn.Set(keyValStore.TableKey(keyValStore.PrefixLinkRanges, rangeKey), encoded); err != nil {
				return err
			}
		}

		// GC is scoped to keys this commit unreferenced, keeping its cost
		// proportional to the update rather than the table size.
		for rangeKey := range touched {
			referenced, err := hasReferent(txn, rangeKey)
			if err != nil {
				return err
			}
			if !referenced {
				if err := txn.Delete(keyValStore.TableKey(keyValStore.PrefixLinkRanges, rangeKey)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error committing range update: %w", err)
	}
	return nil
}

func hasReferent(txn *badger.Txn, rangeKey string) (bool, error) {
	prefix := keyValStore.TableKey(keyValStore.PrefixBlockIndex, rangeKey)
	prefix = append(prefix, keyValStore.Separator)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	return it.ValidForPrefix(prefix), nil
}

func encodeMembers(members []string) ([]byte, error) {
	raw, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("error encoding range members: %w", err)
	}
	return keyValStore.EncodeValue(raw)
}

func decodeMembers(stored []byte) ([]string, error) {
	raw, err := keyValStore.DecodeValue(stored)
	if err != nil {
		return nil, err
	}
	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("error decoding range members: %w", err)
	}
	return members, nil
}

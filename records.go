package linkcache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/graphmirror/linkcache/internal/keyValStore"
	"github.com/graphmirror/linkcache/pkg/digest"
	"github.com/graphmirror/linkcache/pkg/provider"
)

// negativeMarker records "queried upstream, confirmed absent" so the next
// request does not hit the backend again. It can never collide with a JSON
// payload.
var negativeMarker = []byte("!absent")

// fetchBatch retrieves records for keys missing from the cache, already
// serialized for storage.
type fetchBatch func(ctx context.Context, missing []string) (map[string]json.RawMessage, error)

// cachedBatch partitions ids into cached and missing, fetches only the
// missing ones upstream in a single batched call, and persists the results
// (including negative markers, if enabled) before returning the merged view.
// Concurrent calls for overlapping ids may both fetch (at-least-once,
// last-write-wins) but never un-cache a key.
func (c *CachedProvider) cachedBatch(ctx context.Context, prefix []byte, ids []string, fetch fetchBatch) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kv, err := c.kvHandle()
	if err != nil {
		return nil, err
	}

	ids = sortedUnique(ids)
	cached := make(map[string]json.RawMessage)
	var missing []string

	err = kv.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(keyValStore.TableKey(prefix, id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					missing = append(missing, id)
					continue
				}
				return err
			}
			stored, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			raw, err := keyValStore.DecodeValue(stored)
			if err != nil {
				return err
			}
			if isNegative(raw) {
				continue // known absent, do not refetch
			}
			cached[id] = raw
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(PhaseReadCache, err)
	}

	if len(missing) == 0 {
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = kv.Update(func(txn *badger.Txn) error {
		for _, id := range missing {
			raw, ok := fetched[id]
			if !ok {
				if c.config.DisableNegativeCaching {
					continue
				}
				raw = negativeMarker
			}
			encoded, err := keyValStore.EncodeValue(raw)
			if err != nil {
				return err
			}
			if err := txn.Set(keyValStore.TableKey(prefix, id), encoded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(PhaseFetchAndCache, err)
	}

	for id, raw := range fetched {
		cached[id] = raw
	}
	return cached, nil
}

func (c *CachedProvider) Elements(ctx context.Context, ids []string) (map[string]provider.ElementRecord, error) {
	raws, err := c.cachedBatch(ctx, keyValStore.PrefixElements, ids, func(ctx context.Context, missing []string) (map[string]json.RawMessage, error) {
		records, err := c.upstream.Elements(ctx, missing)
		if err != nil {
			return nil, err
		}
		return marshalRecords(records)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]provider.ElementRecord, len(raws))
	for id, raw := range raws {
		var record provider.ElementRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("error decoding cached element %s: %w", id, err)
		}
		out[id] = record
	}
	return out, nil
}

func (c *CachedProvider) ElementTypes(ctx context.Context, ids []string) (map[string]provider.ElementTypeRecord, error) {
	raws, err := c.cachedBatch(ctx, keyValStore.PrefixElementTypes, ids, func(ctx context.Context, missing []string) (map[string]json.RawMessage, error) {
		records, err := c.upstream.ElementTypes(ctx, missing)
		if err != nil {
			return nil, err
		}
		return marshalRecords(records)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]provider.ElementTypeRecord, len(raws))
	for id, raw := range raws {
		var record provider.ElementTypeRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("error decoding cached element type %s: %w", id, err)
		}
		out[id] = record
	}
	return out, nil
}

func (c *CachedProvider) LinkTypes(ctx context.Context, ids []string) (map[string]provider.LinkTypeRecord, error) {
	raws, err := c.cachedBatch(ctx, keyValStore.PrefixLinkTypes, ids, func(ctx context.Context, missing []string) (map[string]json.RawMessage, error) {
		records, err := c.upstream.LinkTypes(ctx, missing)
		if err != nil {
			return nil, err
		}
		return marshalRecords(records)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]provider.LinkTypeRecord, len(raws))
	for id, raw := range raws {
		var record provider.LinkTypeRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("error decoding cached link type %s: %w", id, err)
		}
		out[id] = record
	}
	return out, nil
}

func (c *CachedProvider) PropertyTypes(ctx context.Context, ids []string) (map[string]provider.PropertyTypeRecord, error) {
	raws, err := c.cachedBatch(ctx, keyValStore.PrefixPropertyTypes, ids, func(ctx context.Context, missing []string) (map[string]json.RawMessage, error) {
		records, err := c.upstream.PropertyTypes(ctx, missing)
		if err != nil {
			return nil, err
		}
		return marshalRecords(records)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]provider.PropertyTypeRecord, len(raws))
	for id, raw := range raws {
		var record provider.PropertyTypeRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("error decoding cached property type %s: %w", id, err)
		}
		out[id] = record
	}
	return out, nil
}

// KnownElementTypes caches the full class list as one singleton record.
func (c *CachedProvider) KnownElementTypes(ctx context.Context) ([]provider.ElementTypeRecord, error) {
	var out []provider.ElementTypeRecord
	err := c.cachedSingleton(ctx, "elementTypes", &out, func(ctx context.Context) (interface{}, error) {
		return c.upstream.KnownElementTypes(ctx)
	})
	return out, err
}

// KnownLinkTypes caches the full link type list as one singleton record.
func (c *CachedProvider) KnownLinkTypes(ctx context.Context) ([]provider.LinkTypeRecord, error) {
	var out []provider.LinkTypeRecord
	err := c.cachedSingleton(ctx, "linkTypes", &out, func(ctx context.Context) (interface{}, error) {
		return c.upstream.KnownLinkTypes(ctx)
	})
	return out, err
}

// ConnectedLinkStats caches link-count summaries per (elementID, inexact).
func (c *CachedProvider) ConnectedLinkStats(ctx context.Context, elementID string, inexact bool) ([]provider.LinkCount, error) {
	var out []provider.LinkCount
	key := elementID + string(keyValStore.Separator) + strconv.FormatBool(inexact)
	err := c.cachedKeyed(ctx, keyValStore.PrefixLinkStats, key, &out, func(ctx context.Context) (interface{}, error) {
		return c.upstream.ConnectedLinkStats(ctx, elementID, inexact)
	})
	return out, err
}

// Lookup caches search results keyed by the digest of the canonical JSON of
// the normalized parameter tuple.
func (c *CachedProvider) Lookup(ctx context.Context, params provider.LookupParams) ([]provider.LinkedElement, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("error normalizing lookup params: %w", err)
	}
	sum := digest.Sum256(canonical)
	key := hex.EncodeToString(sum[:])

	var out []provider.LinkedElement
	err = c.cachedKeyed(ctx, keyValStore.PrefixLookup, key, &out, func(ctx context.Context) (interface{}, error) {
		return c.upstream.Lookup(ctx, params)
	})
	return out, err
}

// cachedSingleton caches one record under the known-records table.
func (c *CachedProvider) cachedSingleton(ctx context.Context, name string, out interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	return c.cachedKeyed(ctx, keyValStore.PrefixKnown, name, out, fetch)
}

// cachedKeyed is the single-key variant of cachedBatch: one stored record,
// decoded into out, fetched upstream on the first miss.
func (c *CachedProvider) cachedKeyed(ctx context.Context, prefix []byte, key string, out interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv, err := c.kvHandle()
	if err != nil {
		return err
	}

	storeKey := keyValStore.TableKey(prefix, key)
	var cached []byte
	err = kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		stored, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		cached, err = keyValStore.DecodeValue(stored)
		return err
	})
	if err != nil {
		return storageErr(PhaseReadCache, err)
	}

	if cached != nil {
		return json.Unmarshal(cached, out)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	fetched, err := fetch(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fetched)
	if err != nil {
		return fmt.Errorf("error encoding record for cache: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := keyValStore.EncodeValue(raw)
	if err != nil {
		return err
	}
	err = kv.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey, encoded)
	})
	if err != nil {
		return storageErr(PhaseFetchAndCache, err)
	}

	return json.Unmarshal(raw, out)
}

func marshalRecords[T any](records map[string]T) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(records))
	for id, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("error encoding record %s for cache: %w", id, err)
		}
		out[id] = raw
	}
	return out, nil
}

func isNegative(raw []byte) bool {
	return string(raw) == string(negativeMarker)
}

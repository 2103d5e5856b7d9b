package keyValStore

import "bytes"

// Logical tables share one Badger keyspace, separated by short prefixes.
// Composite keys join their parts with a NUL byte; node identifiers are
// opaque but must not contain NUL, which holds for IRIs and blank node ids.
var (
	KeySchemaVersion = []byte("meta:schema")
	KeyLinkSequence  = []byte("meta:linkSeq")

	PrefixKnown         = []byte("kn:") // singleton records (known element/link types)
	PrefixElements      = []byte("el:")
	PrefixElementTypes  = []byte("et:")
	PrefixLinkTypes     = []byte("lt:")
	PrefixPropertyTypes = []byte("pt:")
	PrefixLinks         = []byte("ln:") // (sourceId, targetId, seq) -> edge record
	PrefixLinkBlocks    = []byte("bk:") // endpoint -> rangeKey
	PrefixBlockIndex    = []byte("bx:") // (rangeKey, endpoint) -> nil, reverse lookup for GC
	PrefixLinkRanges    = []byte("rg:") // rangeKey -> member list
	PrefixLinkStats     = []byte("st:") // (elementId, inexactFlag) -> stats
	PrefixLookup        = []byte("lu:") // paramsDigest -> result list
)

// Separator joins the parts of a composite key.
const Separator byte = 0x00

// TableKey builds a key under prefix from the given parts.
func TableKey(prefix []byte, parts ...string) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	key := make([]byte, 0, size)
	key = append(key, prefix...)
	for i, part := range parts {
		if i > 0 {
			key = append(key, Separator)
		}
		key = append(key, part...)
	}
	return key
}

// SplitKey strips prefix from key and splits the remainder at separators.
func SplitKey(prefix, key []byte) []string {
	rest := bytes.TrimPrefix(key, prefix)
	raw := bytes.Split(rest, []byte{Separator})
	parts := make([]string, len(raw))
	for i, part := range raw {
		parts[i] = string(part)
	}
	return parts
}

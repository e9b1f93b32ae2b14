package catalog

import "github.com/haivivi/audioprint/pkg/kv"

// Key layout (relative to the catalog prefix):
//
//	{prefix}:fp:{id}          → msgpack-encoded Record
//	{prefix}:hash:{hash}:{id} → id
//
// The hash index lets FindByHash list every record with an identical
// locality-sensitive hash without decoding records.

func join(prefix kv.Key, segs ...string) kv.Key {
	k := make(kv.Key, 0, len(prefix)+len(segs))
	k = append(k, prefix...)
	return append(k, segs...)
}

func recordKey(prefix kv.Key, id string) kv.Key {
	return join(prefix, "fp", id)
}

func recordPrefix(prefix kv.Key) kv.Key {
	return join(prefix, "fp")
}

func hashKey(prefix kv.Key, hash, id string) kv.Key {
	return join(prefix, "hash", hash, id)
}

func hashPrefix(prefix kv.Key, hash string) kv.Key {
	return join(prefix, "hash", hash)
}

package caslog

import (
	"hash/maphash"
	"sync"
)

// indexShardCount is the number of independent shards the index is
// split across. Spec.md §4.5 leaves the container choice open and
// explicitly suggests a sharded table with per-shard locks; a fixed
// power-of-two shard count keeps shard selection a mask instead of a
// modulo.
const indexShardCount = 64

// index is the in-memory map from a fixed-size key to the absolute
// byte offset, within the mapping, at which that key's value bytes
// begin. Lookups are concurrency-safe against each other and against
// the sole writer's inserts; the writer itself is never called
// concurrently with another writer (spec.md §5).
type index struct {
	seed   maphash.Seed
	shards [indexShardCount]indexShard
}

type indexShard struct {
	mu sync.RWMutex
	m  map[string]uint64
}

func newIndex() *index {
	idx := &index{seed: maphash.MakeSeed()}
	for i := range idx.shards {
		idx.shards[i].m = make(map[string]uint64)
	}
	return idx
}

func (idx *index) shardFor(key []byte) *indexShard {
	var h maphash.Hash
	h.SetSeed(idx.seed)
	h.Write(key)
	return &idx.shards[h.Sum64()%indexShardCount]
}

// lookup returns the value offset for key, if present. Safe for
// concurrent use by any number of callers, including while the writer
// is concurrently inserting into a different shard — or the same
// shard, guarded by that shard's mutex.
func (idx *index) lookup(key []byte) (uint64, bool) {
	shard := idx.shardFor(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	offset, ok := shard.m[string(key)]
	return offset, ok
}

// insert records key -> offset, replacing any prior entry for key.
// Only the single writer (Write, or the one-time recovery scan before
// any writer or reader is exposed) calls this.
func (idx *index) insert(key []byte, offset uint64) {
	shard := idx.shardFor(key)
	shard.mu.Lock()
	shard.m[string(key)] = offset
	shard.mu.Unlock()
}

// len returns the number of distinct keys currently indexed.
func (idx *index) len() int {
	n := 0
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		n += len(idx.shards[i].m)
		idx.shards[i].mu.RUnlock()
	}
	return n
}

// keys returns a snapshot of every key currently indexed, in no
// particular order. Intended for diagnostics and export tooling, not
// the hot path: it copies every key out of the shards under lock.
func (idx *index) keys() [][]byte {
	out := make([][]byte, 0, idx.len())
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		for k := range idx.shards[i].m {
			out = append(out, []byte(k))
		}
		idx.shards[i].mu.RUnlock()
	}
	return out
}

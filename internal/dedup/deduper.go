// Package dedup suppresses repeated chunk content across documents.
// Exact duplicates are caught by content hash; optionally, chunks whose
// token shingles overlap above a threshold are treated as near
// duplicates of the first occurrence.
package dedup

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// shingleSize is the token window for near-duplicate detection.
const shingleSize = 4

// Deduper tracks chunk content seen during a run. Chunks recorded by
// Check are tentative until Commit confirms they reached the index;
// Hashes only exposes confirmed and seeded entries. Safe for
// concurrent use by the pipeline workers.
type Deduper struct {
	mu         sync.Mutex
	seen       map[uint64]string   // content hash -> first chunk ID
	added      map[string]uint64   // chunk ID -> hash recorded this run
	committed  map[string]struct{} // chunk IDs confirmed written
	suppressed int

	near      bool
	threshold float64
	shingles  map[string]map[uint64]struct{} // chunk ID -> shingle set
}

// Option configures the deduper.
type Option func(*Deduper)

// WithNearDuplicates enables shingle-overlap detection. threshold is
// the Jaccard overlap above which a chunk counts as a duplicate.
func WithNearDuplicates(threshold float64) Option {
	return func(d *Deduper) {
		if threshold > 0 && threshold <= 1 {
			d.near = true
			d.threshold = threshold
		}
	}
}

// New creates a deduper seeded with hashes from earlier runs. seen may
// be nil. Near-duplicate detection only compares chunks seen within
// the current run; seeded hashes catch exact matches only.
func New(seen map[uint64]string, opts ...Option) *Deduper {
	d := &Deduper{
		seen:      make(map[uint64]string, len(seen)),
		added:     make(map[string]uint64),
		committed: make(map[string]struct{}),
		shingles:  make(map[string]map[uint64]struct{}),
	}
	for h, id := range seen {
		d.seen[h] = id
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check reports whether the chunk duplicates earlier content. On the
// first occurrence the chunk is recorded and Check returns false; on a
// duplicate it returns the chunk ID the content was first kept under.
func (d *Deduper) Check(chunk *domain.Chunk) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if firstID, ok := d.seen[chunk.Hash]; ok {
		d.suppressed++
		return firstID, true
	}

	var set map[uint64]struct{}
	if d.near {
		set = shingleSet(chunk.Text)
		for id, other := range d.shingles {
			if jaccard(set, other) >= d.threshold {
				d.suppressed++
				return id, true
			}
		}
	}

	d.seen[chunk.Hash] = chunk.ID
	d.added[chunk.ID] = chunk.Hash
	if d.near {
		d.shingles[chunk.ID] = set
	}
	return "", false
}

// Commit confirms the chunks reached the index. Their hashes become
// part of the persisted snapshot.
func (d *Deduper) Commit(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		d.committed[id] = struct{}{}
	}
}

// Discard forgets chunks that never reached the index, so identical
// content seen later is not suppressed as a duplicate of nothing.
func (d *Deduper) Discard(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		if hash, ok := d.added[id]; ok {
			delete(d.seen, hash)
			delete(d.added, id)
		}
		delete(d.committed, id)
		delete(d.shingles, id)
	}
}

// Hashes returns the snapshot to persist at the end of a run: the
// seeded entries plus hashes of chunks confirmed by Commit. Hashes of
// uncommitted chunks are excluded, so content lost to a failed or
// aborted run is re-attempted next time.
func (d *Deduper) Hashes() map[uint64]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[uint64]string, len(d.seen))
	for h, id := range d.seen {
		if _, tentative := d.added[id]; tentative {
			if _, ok := d.committed[id]; !ok {
				continue
			}
		}
		out[h] = id
	}
	return out
}

// Suppressed returns the number of chunks dropped as duplicates.
func (d *Deduper) Suppressed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// shingleSet hashes every run of shingleSize consecutive tokens.
// Texts shorter than one shingle hash as a whole.
func shingleSet(text string) map[uint64]struct{} {
	tokens := strings.Fields(strings.ToLower(text))
	set := make(map[uint64]struct{})

	if len(tokens) < shingleSize {
		set[xxhash.Sum64String(strings.Join(tokens, " "))] = struct{}{}
		return set
	}

	for i := 0; i+shingleSize <= len(tokens); i++ {
		shingle := strings.Join(tokens[i:i+shingleSize], " ")
		set[xxhash.Sum64String(shingle)] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|.
func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	common := 0
	for h := range small {
		if _, ok := large[h]; ok {
			common++
		}
	}

	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}

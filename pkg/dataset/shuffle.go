package dataset

import (
	"math/rand/v2"

	"github.com/menta2k/srgan-data/pkg/types"
)

// shuffleBuffer holds up to size records. Once full, every added record
// evicts a uniformly chosen resident, so a record may stay buffered for any
// number of additions. A buffer of size 1 keeps the input order.
type shuffleBuffer struct {
	rng   *rand.Rand
	size  int
	items []types.Record
}

func newShuffleBuffer(rng *rand.Rand, size int) *shuffleBuffer {
	return &shuffleBuffer{rng: rng, size: size, items: make([]types.Record, 0, size)}
}

// add stores rec and, when the buffer was already full, returns the evicted record.
func (b *shuffleBuffer) add(rec types.Record) (types.Record, bool) {
	if len(b.items) < b.size {
		b.items = append(b.items, rec)
		return types.Record{}, false
	}
	i := b.rng.IntN(len(b.items))
	out := b.items[i]
	b.items[i] = rec
	return out, true
}

// drain removes one random resident, false once empty.
func (b *shuffleBuffer) drain() (types.Record, bool) {
	n := len(b.items)
	if n == 0 {
		return types.Record{}, false
	}
	i := b.rng.IntN(n)
	out := b.items[i]
	b.items[i] = b.items[n-1]
	b.items[n-1] = types.Record{}
	b.items = b.items[:n-1]
	return out, true
}

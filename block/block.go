package block

import (
	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/internal/coding"
	"github.com/pkg/errors"
)

// Block is an immutable, decoded block. It is safe for concurrent use,
// each reader needs its own Iterator.
type Block struct {
	data        []byte
	restarts    int // offset of the restart index
	numRestarts int

	pooled bool
}

// New validates data and wraps it into a Block. The block retains data
// which must not be modified afterwards.
func New(data []byte) (*Block, error) {
	if len(data) < 4 {
		return nil, errors.Wrapf(lsmcore.ErrCorruption, "block: too short (%d bytes)", len(data))
	}

	maxRestarts := uint64(len(data)-4) / 4
	numRestarts := uint64(coding.Fixed32(data[len(data)-4:]))
	if numRestarts > maxRestarts {
		return nil, errors.Wrapf(lsmcore.ErrCorruption, "block: %d restarts do not fit into %d bytes", numRestarts, len(data))
	}

	b := &Block{
		data:        data,
		restarts:    len(data) - 4 - int(numRestarts)*4,
		numRestarts: int(numRestarts),
	}

	prev := -1
	for i := 0; i < b.numRestarts; i++ {
		off := b.restartPoint(i)
		if (i == 0 && off != 0) || off <= prev || (off >= b.restarts && off != 0) {
			return nil, errors.Wrapf(lsmcore.ErrCorruption, "block: bad restart offset %d at position %d", off, i)
		}
		prev = off
	}
	return b, nil
}

// Size returns the size of the block contents in bytes.
func (b *Block) Size() int { return len(b.data) }

// NumRestarts returns the number of restart points.
func (b *Block) NumRestarts() int { return b.numRestarts }

// RestartOffsets returns the offsets of all restart points.
func (b *Block) RestartOffsets() []int {
	offs := make([]int, b.numRestarts)
	for i := range offs {
		offs[i] = b.restartPoint(i)
	}
	return offs
}

// Release releases the block and recycles its buffer, if the block was
// created by Decode. The block and all its iterators must not be used
// after this method is called.
func (b *Block) Release() {
	if b.pooled {
		releaseBuffer(b.data)
	}
	b.data = nil
	b.restarts, b.numRestarts = 0, 0
}

// NewIterator returns an unpositioned iterator over the block. Keys are
// ordered by cmp; a nil cmp defaults to lsmcore.BytewiseComparator.
func (b *Block) NewIterator(cmp lsmcore.Comparator) *Iterator {
	if cmp == nil {
		cmp = lsmcore.BytewiseComparator
	}
	return &Iterator{
		cmp:          cmp,
		data:         b.data,
		restarts:     b.restarts,
		numRestarts:  b.numRestarts,
		current:      b.restarts,
		next:         b.restarts,
		restartIndex: b.numRestarts,
	}
}

func (b *Block) restartPoint(i int) int {
	return int(coding.Fixed32(b.data[b.restarts+4*i:]))
}

// --------------------------------------------------------------------

var _ lsmcore.Iterator = (*Iterator)(nil)

// Iterator is a bidirectional cursor over the entries of a Block.
type Iterator struct {
	cmp  lsmcore.Comparator
	data []byte

	restarts     int // offset of the restart index
	numRestarts  int
	restartIndex int // restart block of the current entry

	current int // offset of the current entry, >= restarts if invalid
	next    int // offset of the next entry

	key []byte
	val []byte
	err error
}

// Valid implements lsmcore.Iterator.
func (i *Iterator) Valid() bool { return i.err == nil && i.current < i.restarts }

// Key returns the key of the current entry. The buffer is owned by the
// iterator and only valid until the next cursor move.
func (i *Iterator) Key() []byte { return i.key }

// Value returns the value of the current entry. The value aliases block
// memory.
func (i *Iterator) Value() []byte { return i.val }

// Err implements lsmcore.Iterator.
func (i *Iterator) Err() error { return i.err }

// SeekToFirst implements lsmcore.Iterator.
func (i *Iterator) SeekToFirst() {
	if i.numRestarts == 0 {
		i.invalidate()
		return
	}
	i.seekToRestartPoint(0)
	i.parseNextEntry()
}

// SeekToLast implements lsmcore.Iterator.
func (i *Iterator) SeekToLast() {
	if i.numRestarts == 0 {
		i.invalidate()
		return
	}
	i.seekToRestartPoint(i.numRestarts - 1)
	for i.parseNextEntry() && i.next < i.restarts {
	}
}

// Next implements lsmcore.Iterator.
func (i *Iterator) Next() {
	if !i.Valid() {
		return
	}
	i.parseNextEntry()
}

// Prev implements lsmcore.Iterator.
func (i *Iterator) Prev() {
	if !i.Valid() {
		return
	}

	// scan backwards to a restart point before the current entry
	original := i.current
	for i.restartPoint(i.restartIndex) >= original {
		if i.restartIndex == 0 {
			i.invalidate()
			return
		}
		i.restartIndex--
	}

	i.seekToRestartPoint(i.restartIndex)
	for i.parseNextEntry() && i.next < original {
	}
}

// Seek implements lsmcore.Iterator.
func (i *Iterator) Seek(target []byte) {
	if i.err != nil {
		return
	}
	if i.numRestarts == 0 {
		i.invalidate()
		return
	}

	// binary search for the last restart point with a key < target
	left, right := 0, i.numRestarts-1
	for left < right {
		mid := (left + right + 1) / 2
		key, ok := i.restartKey(mid)
		if !ok {
			return
		}
		if i.cmp.Compare(key, target) < 0 {
			left = mid
		} else {
			right = mid - 1
		}
	}

	// linear scan for the first key >= target
	i.seekToRestartPoint(left)
	for i.parseNextEntry() {
		if i.cmp.Compare(i.key, target) >= 0 {
			return
		}
	}
}

func (i *Iterator) restartPoint(n int) int {
	return int(coding.Fixed32(i.data[i.restarts+4*n:]))
}

// restartKey decodes the full key stored at restart point n.
func (i *Iterator) restartKey(n int) ([]byte, bool) {
	off := i.restartPoint(n)
	shared, unshared, _, hlen, ok := decodeEntryHeader(i.data[off:i.restarts])
	if !ok || shared != 0 {
		i.corruption(off)
		return nil, false
	}
	start := off + hlen
	return i.data[start : start+unshared], true
}

func (i *Iterator) seekToRestartPoint(n int) {
	i.key = i.key[:0]
	i.restartIndex = n
	i.next = i.restartPoint(n)
}

func (i *Iterator) parseNextEntry() bool {
	i.current = i.next
	if i.current >= i.restarts {
		i.invalidate()
		return false
	}

	shared, unshared, vlen, hlen, ok := decodeEntryHeader(i.data[i.current:i.restarts])
	if !ok || shared > len(i.key) {
		i.corruption(i.current)
		return false
	}

	p := i.current + hlen
	i.key = append(i.key[:shared], i.data[p:p+unshared]...)
	p += unshared
	i.val = i.data[p : p+vlen : p+vlen]
	i.next = p + vlen

	for i.restartIndex+1 < i.numRestarts && i.restartPoint(i.restartIndex+1) <= i.current {
		i.restartIndex++
	}
	return true
}

func (i *Iterator) invalidate() {
	i.current = i.restarts
	i.next = i.restarts
	i.restartIndex = i.numRestarts
	i.key = i.key[:0]
	i.val = nil
}

func (i *Iterator) corruption(off int) {
	i.invalidate()
	i.err = errors.Wrapf(lsmcore.ErrCorruption, "block: bad entry at offset %d", off)
}

// decodeEntryHeader decodes the three varints at the front of an entry and
// checks that key delta and value fit into src.
func decodeEntryHeader(src []byte) (shared, unshared, vlen, n int, ok bool) {
	var v [3]uint32
	for k := range v {
		x, m := coding.Varint32(src[n:])
		if m <= 0 {
			return 0, 0, 0, 0, false
		}
		v[k] = x
		n += m
	}

	if uint64(v[1])+uint64(v[2]) > uint64(len(src)-n) {
		return 0, 0, 0, 0, false
	}
	return int(v[0]), int(v[1]), int(v[2]), n, true
}

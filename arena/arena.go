// Package arena implements an append-only block allocator. Allocations are
// addressed by Offset handles which stay valid for the lifetime of the
// Arena; individual allocations are never freed.
package arena

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/bsm/lsmcore"
	"github.com/pkg/errors"
)

// MaxAlign is the largest supported alignment.
const MaxAlign = 8

// Options configure an Arena.
type Options struct {
	// BlockSize is the size of regular arena blocks. Requests larger than
	// a quarter of the block size get a dedicated block.
	// Default: 4KiB.
	BlockSize int
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < MaxAlign {
		oo.BlockSize = 1 << 12
	}
	return &oo
}

// Offset addresses an allocation within an Arena. The zero Offset is nil.
type Offset uint64

func makeOffset(block, pos int) Offset { return Offset(uint64(block+1)<<32 | uint64(pos)) }

// IsNil returns true for the zero Offset.
func (o Offset) IsNil() bool { return o == 0 }

// Add returns the Offset n bytes after o.
func (o Offset) Add(n int) Offset { return o + Offset(n) }

func (o Offset) block() int { return int(o>>32) - 1 }
func (o Offset) pos() int   { return int(o & math.MaxUint32) }

// Arena is a bump allocator. Allocate must only be called by a single
// goroutine at a time, the accessors are safe for concurrent use and may
// overlap with Allocate.
type Arena struct {
	blockSize int

	blocks    atomic.Value // [][]byte, replaced on growth
	cur       int          // index of the current block, -1 if none
	pos       int          // next free position in the current block
	remaining int          // bytes remaining in the current block

	usage int64
}

// New creates a new Arena.
func New(o *Options) *Arena {
	o = o.norm()

	a := &Arena{
		blockSize: o.BlockSize,
		cur:       -1,
	}
	a.blocks.Store([][]byte(nil))
	return a
}

// Allocate reserves size bytes aligned to align, which must be a power of
// two no larger than MaxAlign. The returned region is zeroed.
func (a *Arena) Allocate(size, align int) (Offset, error) {
	if size <= 0 || uint64(size) > math.MaxUint32 {
		return 0, errors.Wrapf(lsmcore.ErrInvalidArgument, "arena: bad allocation size %d", size)
	}
	if align <= 0 || align > MaxAlign || align&(align-1) != 0 {
		return 0, errors.Wrapf(lsmcore.ErrInvalidArgument, "arena: bad alignment %d", align)
	}

	if a.cur >= 0 {
		slop := (align - a.pos&(align-1)) & (align - 1)
		if need := size + slop; need <= a.remaining {
			off := makeOffset(a.cur, a.pos+slop)
			a.pos += need
			a.remaining -= need
			return off, nil
		}
	}
	return a.allocateFallback(size), nil
}

func (a *Arena) allocateFallback(size int) Offset {
	if size > a.blockSize/4 {
		// dedicated block, keep using the current one
		return makeOffset(a.newBlock(size), 0)
	}

	a.cur = a.newBlock(a.blockSize)
	a.pos = size
	a.remaining = a.blockSize - size
	return makeOffset(a.cur, 0)
}

func (a *Arena) newBlock(size int) int {
	// round up so that 8-byte slots never straddle the end of a block
	buf := make([]byte, (size+MaxAlign-1)&^(MaxAlign-1))

	old := a.loadBlocks()
	blocks := make([][]byte, len(old), len(old)+1)
	copy(blocks, old)
	blocks = append(blocks, buf)
	a.blocks.Store(blocks)

	atomic.AddInt64(&a.usage, int64(len(buf)))
	return len(blocks) - 1
}

func (a *Arena) loadBlocks() [][]byte {
	return a.blocks.Load().([][]byte)
}

// MemoryUsage returns the total number of bytes reserved by the Arena.
func (a *Arena) MemoryUsage() int64 {
	return atomic.LoadInt64(&a.usage)
}

// NumBlocks returns the number of blocks allocated so far.
func (a *Arena) NumBlocks() int {
	return len(a.loadBlocks())
}

// Bytes returns the n bytes at off. The slice aliases arena memory.
func (a *Arena) Bytes(off Offset, n int) []byte {
	buf := a.loadBlocks()[off.block()]
	pos := off.pos()
	return buf[pos : pos+n : pos+n]
}

// LoadUint64 atomically loads the 8-byte slot at off. The slot must have
// been allocated with an alignment of 8.
func (a *Arena) LoadUint64(off Offset) uint64 {
	return atomic.LoadUint64(a.slot(off))
}

// StoreUint64 atomically stores v into the 8-byte slot at off.
func (a *Arena) StoreUint64(off Offset, v uint64) {
	atomic.StoreUint64(a.slot(off), v)
}

func (a *Arena) slot(off Offset) *uint64 {
	buf := a.loadBlocks()[off.block()]
	pos := off.pos()
	buf = buf[pos : pos+8 : pos+8]
	return (*uint64)(unsafe.Pointer(&buf[0]))
}

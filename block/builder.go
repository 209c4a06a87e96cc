// Package block implements the prefix-compressed block format.
//
// A block holds a sorted run of key/value pairs. Keys are stored as deltas
// against their predecessor, except for every n-th key (a restart point)
// which is stored in full. The offsets of all restart points are appended
// to the block to support binary search.
package block

import (
	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/internal/coding"
	"github.com/pkg/errors"
)

var errFinished = errors.Wrap(lsmcore.ErrInvalidArgument, "block: builder is finished")

// Options configure a Builder.
type Options struct {
	// Comparator defines the order of keys.
	// Default: lsmcore.BytewiseComparator.
	Comparator lsmcore.Comparator

	// RestartInterval is the number of keys between restart points.
	// Default: 16.
	RestartInterval int
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Comparator == nil {
		oo.Comparator = lsmcore.BytewiseComparator
	}
	if oo.RestartInterval < 1 {
		oo.RestartInterval = 16
	}
	return &oo
}

// Builder builds a single block.
type Builder struct {
	o *Options

	buf        []byte   // entry data
	restarts   []uint32 // restart offsets
	counter    int      // entries since the last restart
	numEntries int
	finished   bool
	lastKey    []byte
}

// NewBuilder creates a new block builder.
func NewBuilder(o *Options) *Builder {
	return &Builder{
		o:        o.norm(),
		restarts: []uint32{0},
	}
}

// Reset clears the builder so it can be reused.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.restarts = append(b.restarts[:0], 0)
	b.counter = 0
	b.numEntries = 0
	b.finished = false
	b.lastKey = b.lastKey[:0]
}

// Empty returns true if no entries were added since the last Reset.
func (b *Builder) Empty() bool { return b.numEntries == 0 }

// NumEntries returns the number of added entries.
func (b *Builder) NumEntries() int { return b.numEntries }

// LastKey returns the most recently added key.
func (b *Builder) LastKey() []byte { return b.lastKey }

// Add appends an entry. Keys must be added in strictly increasing order.
func (b *Builder) Add(key, value []byte) error {
	if b.finished {
		return errFinished
	}
	if b.numEntries != 0 && b.o.Comparator.Compare(key, b.lastKey) <= 0 {
		return errors.Wrapf(lsmcore.ErrInvalidArgument, "block: out-of-order add, %q must be > %q", key, b.lastKey)
	}

	shared := 0
	if b.counter < b.o.RestartInterval {
		n := len(b.lastKey)
		if len(key) < n {
			n = len(key)
		}
		for shared < n && b.lastKey[shared] == key[shared] {
			shared++
		}
	} else {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
		b.counter = 0
	}

	unshared := len(key) - shared
	b.buf = coding.AppendVarint32(b.buf, uint32(shared))
	b.buf = coding.AppendVarint32(b.buf, uint32(unshared))
	b.buf = coding.AppendVarint32(b.buf, uint32(len(value)))
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)

	b.lastKey = append(b.lastKey[:shared], key[shared:]...)
	b.counter++
	b.numEntries++
	return nil
}

// CurrentSizeEstimate returns the size of the block if it was finished
// now.
func (b *Builder) CurrentSizeEstimate() int {
	return len(b.buf) + 4*len(b.restarts) + 4
}

// Finish appends the restart index and returns the block contents. The
// returned slice is owned by the builder and valid until Reset. Add must
// not be called after Finish.
func (b *Builder) Finish() []byte {
	if !b.finished {
		for _, o := range b.restarts {
			b.buf = coding.AppendFixed32(b.buf, o)
		}
		b.buf = coding.AppendFixed32(b.buf, uint32(len(b.restarts)))
		b.finished = true
	}
	return b.buf
}

package block

import (
	"github.com/bsm/lsmcore"
	"github.com/pkg/errors"
)

var errClosed = errors.Wrap(lsmcore.ErrInvalidArgument, "block: writer is closed")

// WriterOptions define writer specific options.
type WriterOptions struct {
	// Comparator defines the order of keys.
	// Default: lsmcore.BytewiseComparator.
	Comparator lsmcore.Comparator

	// BlockSize is the minimum uncompressed size in bytes of each block.
	// Default: 4KiB.
	BlockSize int

	// RestartInterval is the number of keys between restart points
	// for delta encoding of keys.
	// Default: 16.
	RestartInterval int

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression lsmcore.Compression
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.Comparator == nil {
		oo.Comparator = lsmcore.BytewiseComparator
	}
	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 12
	}
	if oo.RestartInterval < 1 {
		oo.RestartInterval = 16
	}
	if !oo.Compression.IsValid() {
		oo.Compression = lsmcore.SnappyCompression
	}
	return &oo
}

// Sealed is a finished block, as emitted by a Writer.
type Sealed struct {
	// Data holds the block contents followed by the compression type and
	// checksum trailer. Pass it to Decode to read the block.
	Data []byte

	// IndexKey is a short key >= every key in the block and < every key
	// in the following block.
	IndexKey []byte

	// NumEntries is the number of entries in the block.
	NumEntries int
}

// Writer splits a sorted stream of key/value pairs into sealed blocks.
type Writer struct {
	o    *WriterOptions
	emit func(*Sealed) error

	block      *Builder
	lastKey    []byte
	numEntries int

	pending     *Sealed // sealed block awaiting its index key
	pendingLast []byte  // last key of the pending block

	tmp    []byte // compression scratch buffer
	closed bool
}

// NewWriter returns a Writer which passes each sealed block to emit.
func NewWriter(emit func(*Sealed) error, o *WriterOptions) *Writer {
	o = o.norm()
	return &Writer{
		o:    o,
		emit: emit,
		block: NewBuilder(&Options{
			Comparator:      o.Comparator,
			RestartInterval: o.RestartInterval,
		}),
	}
}

// NumEntries returns the total number of appended entries.
func (w *Writer) NumEntries() int { return w.numEntries }

// Append appends an entry. Keys must be appended in strictly increasing
// order.
func (w *Writer) Append(key, value []byte) error {
	if w.closed {
		return errClosed
	}

	if w.numEntries != 0 && w.o.Comparator.Compare(key, w.lastKey) <= 0 {
		return errors.Wrapf(lsmcore.ErrInvalidArgument, "block: attempted an out-of-order append, %q must be > %q", key, w.lastKey)
	}

	if w.pending != nil {
		w.pending.IndexKey = w.o.Comparator.FindShortestSeparator(w.pendingLast, key)
		if err := w.flushPending(); err != nil {
			return err
		}
	}

	if err := w.block.Add(key, value); err != nil {
		return err
	}
	w.lastKey = append(w.lastKey[:0], key...)
	w.numEntries++

	if w.block.CurrentSizeEstimate() >= w.o.BlockSize {
		w.seal()
	}
	return nil
}

// AppendIterator drains it into the writer. The iterator must yield keys
// in strictly increasing order under the writer's comparator.
func (w *Writer) AppendIterator(it lsmcore.Iterator) error {
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if err := w.Append(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Err()
}

// Close seals the last block and emits all remaining blocks.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	w.closed = true

	w.seal()
	if w.pending != nil {
		w.pending.IndexKey = w.o.Comparator.FindShortSuccessor(w.pendingLast)
		return w.flushPending()
	}
	return nil
}

func (w *Writer) seal() {
	if w.block.Empty() {
		return
	}

	w.pending = &Sealed{
		Data:       seal(nil, w.block.Finish(), w.o.Compression, &w.tmp),
		NumEntries: w.block.NumEntries(),
	}
	w.pendingLast = append([]byte(nil), w.lastKey...)
	w.block.Reset()
}

func (w *Writer) flushPending() error {
	sealed := w.pending
	w.pending, w.pendingLast = nil, nil
	return w.emit(sealed)
}

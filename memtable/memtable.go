// Package memtable implements the mutable in-memory table of an LSM tree.
//
// A MemTable stores versioned records in an arena-backed skip list, ordered
// by internal key. It supports a single writer concurrently with any
// number of readers.
package memtable

import (
	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/arena"
	"github.com/bsm/lsmcore/internal/coding"
	"github.com/bsm/lsmcore/skiplist"
	"github.com/pkg/errors"
)

// Options configure a MemTable.
type Options struct {
	// Comparator defines the order of user keys.
	// Default: lsmcore.BytewiseComparator.
	Comparator lsmcore.Comparator

	// MaxSize is the approximate memory usage in bytes at which the table
	// reports itself as Full.
	// Default: 4MiB.
	MaxSize int64

	// ArenaBlockSize is the size of the blocks allocated by the arena.
	// Default: 4KiB.
	ArenaBlockSize int
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Comparator == nil {
		oo.Comparator = lsmcore.BytewiseComparator
	}
	if oo.MaxSize < 1 {
		oo.MaxSize = 4 << 20
	}
	if oo.ArenaBlockSize < 1 {
		oo.ArenaBlockSize = 1 << 12
	}
	return &oo
}

// MemTable is a sorted, versioned, in-memory table.
type MemTable struct {
	o     *Options
	icmp  *lsmcore.InternalKeyComparator
	arena *arena.Arena
	list  *skiplist.SkipList

	buf []byte // record scratch buffer, owned by the writer
}

// New creates an empty MemTable.
func New(o *Options) *MemTable {
	o = o.norm()

	icmp := lsmcore.NewInternalKeyComparator(o.Comparator)
	a := arena.New(&arena.Options{BlockSize: o.ArenaBlockSize})
	return &MemTable{
		o:     o,
		icmp:  icmp,
		arena: a,
		list:  skiplist.New(a, recordComparator{icmp: icmp}),
	}
}

// Comparator returns the internal key comparator of the table.
func (m *MemTable) Comparator() *lsmcore.InternalKeyComparator { return m.icmp }

// Len returns the number of records in the table.
func (m *MemTable) Len() int { return m.list.Len() }

// ApproximateMemoryUsage returns the number of bytes reserved for records,
// including encoding and node overhead.
func (m *MemTable) ApproximateMemoryUsage() int64 { return m.arena.MemoryUsage() }

// Full returns true once the memory usage has reached the configured
// MaxSize and the table should be flushed.
func (m *MemTable) Full() bool { return m.ApproximateMemoryUsage() >= m.o.MaxSize }

// Add adds a record for userKey at version seq. For deletions, value
// should be empty. Adding a second record with the same user key and
// sequence number fails. Add must not be called concurrently.
func (m *MemTable) Add(seq lsmcore.SequenceNumber, vt lsmcore.ValueType, userKey, value []byte) error {
	ikeySize := len(userKey) + lsmcore.TagSize

	buf := m.buf[:0]
	buf = coding.AppendVarint32(buf, uint32(ikeySize))
	buf, err := lsmcore.AppendInternalKey(buf, userKey, seq, vt)
	if err != nil {
		return err
	}
	buf = coding.AppendLengthPrefixed(buf, value)
	m.buf = buf

	return m.list.Insert(buf)
}

// Get looks up the newest record for userKey with a sequence number <= seq.
// It returns the value and KeyFound, nil and KeyDeleted if the newest
// visible record is a tombstone, or nil and KeyNotFound. The returned
// value aliases table memory and must not be modified.
func (m *MemTable) Get(userKey []byte, seq lsmcore.SequenceNumber) ([]byte, lsmcore.KeyState, error) {
	lk, err := lsmcore.NewLookupKey(userKey, seq)
	if err != nil {
		return nil, lsmcore.KeyNotFound, err
	}

	it := m.list.NewIterator()
	it.Seek(lk.MemtableKey())
	if !it.Valid() {
		return nil, lsmcore.KeyNotFound, nil
	}

	ikey, value, err := decodeRecord(it.Key())
	if err != nil {
		return nil, lsmcore.KeyNotFound, err
	}
	if m.icmp.User.Compare(lsmcore.ExtractUserKey(ikey), userKey) != 0 {
		return nil, lsmcore.KeyNotFound, nil
	}

	if _, vt := lsmcore.UnpackTag(coding.Fixed64(ikey[len(ikey)-lsmcore.TagSize:])); vt == lsmcore.TypeDeletion {
		return nil, lsmcore.KeyDeleted, nil
	}
	return value, lsmcore.KeyFound, nil
}

// NewIterator returns an iterator over the internal keys and values of
// the table. The iterator observes records added after its creation once
// it is re-positioned.
func (m *MemTable) NewIterator() *Iterator {
	return &Iterator{iter: m.list.NewIterator()}
}

// --------------------------------------------------------------------

// recordComparator orders length-prefixed records by their internal keys.
type recordComparator struct {
	icmp *lsmcore.InternalKeyComparator
}

func (c recordComparator) Compare(a, b []byte) int {
	ak, _ := coding.LengthPrefixed(a)
	bk, _ := coding.LengthPrefixed(b)
	return c.icmp.Compare(ak, bk)
}

// decodeRecord splits a record into its internal key and value.
func decodeRecord(rec []byte) (ikey, value []byte, err error) {
	ikey, n := coding.LengthPrefixed(rec)
	if n <= 0 || len(ikey) < lsmcore.TagSize {
		return nil, nil, errors.Wrap(lsmcore.ErrCorruption, "memtable: bad record key")
	}

	value, m := coding.LengthPrefixed(rec[n:])
	if m <= 0 {
		return nil, nil, errors.Wrap(lsmcore.ErrCorruption, "memtable: bad record value")
	}
	return ikey, value, nil
}

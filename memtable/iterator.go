package memtable

import (
	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/internal/coding"
	"github.com/bsm/lsmcore/skiplist"
)

var _ lsmcore.Iterator = (*Iterator)(nil)

// Iterator iterates over the records of a MemTable in internal key order.
// Keys are internal keys; Seek expects an internal key as target.
type Iterator struct {
	iter *skiplist.Iterator
	tmp  []byte // seek scratch buffer

	key, val []byte
	err      error
}

// Valid implements lsmcore.Iterator.
func (i *Iterator) Valid() bool { return i.err == nil && i.iter.Valid() }

// SeekToFirst implements lsmcore.Iterator.
func (i *Iterator) SeekToFirst() { i.iter.SeekToFirst(); i.decode() }

// SeekToLast implements lsmcore.Iterator.
func (i *Iterator) SeekToLast() { i.iter.SeekToLast(); i.decode() }

// Seek implements lsmcore.Iterator.
func (i *Iterator) Seek(target []byte) {
	i.tmp = coding.AppendLengthPrefixed(i.tmp[:0], target)
	i.iter.Seek(i.tmp)
	i.decode()
}

// Next implements lsmcore.Iterator.
func (i *Iterator) Next() {
	if !i.Valid() {
		return
	}
	i.iter.Next()
	i.decode()
}

// Prev implements lsmcore.Iterator.
func (i *Iterator) Prev() {
	if !i.Valid() {
		return
	}
	i.iter.Prev()
	i.decode()
}

// Key returns the internal key of the current record.
func (i *Iterator) Key() []byte { return i.key }

// Value returns the value of the current record.
func (i *Iterator) Value() []byte { return i.val }

// Err implements lsmcore.Iterator.
func (i *Iterator) Err() error { return i.err }

func (i *Iterator) decode() {
	i.key, i.val = nil, nil
	if !i.iter.Valid() {
		return
	}
	i.key, i.val, i.err = decodeRecord(i.iter.Key())
}

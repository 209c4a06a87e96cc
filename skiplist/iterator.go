package skiplist

import "github.com/bsm/lsmcore/arena"

// Iterator is a cursor over the keys of a SkipList. Iterators are not
// safe for concurrent use, but any number of iterators may be used
// concurrently with a single writer.
type Iterator struct {
	list *SkipList
	node arena.Offset
}

// Valid returns true if the iterator is positioned at a node.
func (it *Iterator) Valid() bool { return !it.node.IsNil() }

// Key returns the key at the current position. The returned slice aliases
// arena memory and must not be modified. REQUIRES: Valid().
func (it *Iterator) Key() []byte { return it.list.key(it.node) }

// Next advances to the next position. REQUIRES: Valid().
func (it *Iterator) Next() {
	it.node = it.list.next(it.node, 0)
}

// Prev moves to the previous position. REQUIRES: Valid().
func (it *Iterator) Prev() {
	// no backward links, search for the last node before the current key
	it.node = it.list.findLessThan(it.Key())
	if it.node == it.list.head {
		it.node = 0
	}
}

// Seek moves to the first entry with a key >= target.
func (it *Iterator) Seek(target []byte) {
	it.node = it.list.findGreaterOrEqual(target, nil)
}

// SeekForPrev moves to the last entry with a key <= target.
func (it *Iterator) SeekForPrev(target []byte) {
	it.Seek(target)
	if !it.Valid() {
		it.SeekToLast()
	} else if it.list.cmp.Compare(it.Key(), target) > 0 {
		it.Prev()
	}
}

// SeekToFirst moves to the first entry in the list.
func (it *Iterator) SeekToFirst() {
	it.node = it.list.next(it.list.head, 0)
}

// SeekToLast moves to the last entry in the list.
func (it *Iterator) SeekToLast() {
	it.node = it.list.findLast()
	if it.node == it.list.head {
		it.node = 0
	}
}

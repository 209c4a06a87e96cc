// Package skiplist implements an arena-backed skip list which supports a
// single writer concurrently with any number of readers.
//
// Nodes live in arena memory and link to each other via arena offsets.
// Forward pointers are published with atomic stores, so a reader that
// observes a new node also observes its key and tower. Readers never
// block and need no external locking; writers must be serialised by the
// caller.
package skiplist

import (
	"encoding/binary"
	"math/rand"
	"sync/atomic"

	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/arena"
	"github.com/pkg/errors"
)

// MaxHeight is the maximum height of a node.
const MaxHeight = 12

// node layout:
//
//	key size (4 bytes) | height (2 bytes) | padding (2 bytes) | tower (height * 8 bytes) | key
const (
	nodeHeaderSize = 8
	towerSlotSize  = 8
)

// Comparer defines the order of keys within the list.
type Comparer interface {
	Compare(a, b []byte) int
}

// SkipList is an ordered set of unique keys.
type SkipList struct {
	arena *arena.Arena
	cmp   Comparer
	head  arena.Offset
	rnd   *rand.Rand

	height int32 // current max height, accessed atomically
	count  int64 // number of nodes, accessed atomically
}

// New creates a new skip list which allocates its nodes from a.
func New(a *arena.Arena, cmp Comparer) *SkipList {
	s := &SkipList{
		arena:  a,
		cmp:    cmp,
		rnd:    rand.New(rand.NewSource(0xdeadbeef)),
		height: 1,
	}

	head, err := s.newNode(nil, MaxHeight)
	if err != nil {
		panic(err) // a header-only allocation cannot fail
	}
	s.head = head
	return s
}

// Len returns the number of keys in the list.
func (s *SkipList) Len() int {
	return int(atomic.LoadInt64(&s.count))
}

// Insert copies key into the list. It returns an error if the list
// already contains a key that compares equal.
func (s *SkipList) Insert(key []byte) error {
	var prev [MaxHeight]arena.Offset

	if x := s.findGreaterOrEqual(key, &prev); !x.IsNil() && s.cmp.Compare(s.key(x), key) == 0 {
		return errors.Wrapf(lsmcore.ErrInvalidArgument, "skiplist: duplicate key %q", key)
	}

	height := s.randomHeight()
	node, err := s.newNode(key, height)
	if err != nil {
		return err
	}

	if cur := s.maxHeight(); height > cur {
		for i := cur; i < height; i++ {
			prev[i] = s.head
		}
		// Readers observing the new height either see nil pointers at the
		// new levels from head, and drop down immediately, or see the new
		// node once it is linked below.
		atomic.StoreInt32(&s.height, int32(height))
	}

	for i := 0; i < height; i++ {
		s.setNext(node, i, s.next(prev[i], i))
		s.setNext(prev[i], i, node)
	}
	atomic.AddInt64(&s.count, 1)
	return nil
}

// Contains returns true if the list contains a key equal to key.
func (s *SkipList) Contains(key []byte) bool {
	x := s.findGreaterOrEqual(key, nil)
	return !x.IsNil() && s.cmp.Compare(s.key(x), key) == 0
}

// NewIterator returns an unpositioned iterator over the list.
func (s *SkipList) NewIterator() *Iterator {
	return &Iterator{list: s}
}

func (s *SkipList) maxHeight() int {
	return int(atomic.LoadInt32(&s.height))
}

func (s *SkipList) randomHeight() int {
	h := 1
	for h < MaxHeight && s.rnd.Intn(2) == 0 {
		h++
	}
	return h
}

// findGreaterOrEqual returns the first node with a key >= key, or nil.
// If prev is non-nil, it is populated with the last node < key at each
// level.
func (s *SkipList) findGreaterOrEqual(key []byte, prev *[MaxHeight]arena.Offset) arena.Offset {
	x := s.head
	level := s.maxHeight() - 1
	for {
		next := s.next(x, level)
		if !next.IsNil() && s.cmp.Compare(s.key(next), key) < 0 {
			x = next
			continue
		}

		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return next
		}
		level--
	}
}

// findLessThan returns the last node with a key < key, or head.
func (s *SkipList) findLessThan(key []byte) arena.Offset {
	x := s.head
	level := s.maxHeight() - 1
	for {
		next := s.next(x, level)
		if !next.IsNil() && s.cmp.Compare(s.key(next), key) < 0 {
			x = next
			continue
		}

		if level == 0 {
			return x
		}
		level--
	}
}

// findLast returns the last node in the list, or head if empty.
func (s *SkipList) findLast() arena.Offset {
	x := s.head
	level := s.maxHeight() - 1
	for {
		next := s.next(x, level)
		if !next.IsNil() {
			x = next
			continue
		}

		if level == 0 {
			return x
		}
		level--
	}
}

// --------------------------------------------------------------------

func (s *SkipList) newNode(key []byte, height int) (arena.Offset, error) {
	size := nodeHeaderSize + height*towerSlotSize + len(key)
	node, err := s.arena.Allocate(size, towerSlotSize)
	if err != nil {
		return 0, err
	}

	buf := s.arena.Bytes(node, size)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(key)))
	binary.LittleEndian.PutUint16(buf[4:], uint16(height))
	copy(buf[nodeHeaderSize+height*towerSlotSize:], key)
	return node, nil
}

func (s *SkipList) key(node arena.Offset) []byte {
	hdr := s.arena.Bytes(node, nodeHeaderSize)
	size := int(binary.LittleEndian.Uint32(hdr[0:]))
	height := int(binary.LittleEndian.Uint16(hdr[4:]))
	return s.arena.Bytes(node.Add(nodeHeaderSize+height*towerSlotSize), size)
}

func (s *SkipList) next(node arena.Offset, level int) arena.Offset {
	return arena.Offset(s.arena.LoadUint64(node.Add(nodeHeaderSize + level*towerSlotSize)))
}

func (s *SkipList) setNext(node arena.Offset, level int, next arena.Offset) {
	s.arena.StoreUint64(node.Add(nodeHeaderSize+level*towerSlotSize), uint64(next))
}

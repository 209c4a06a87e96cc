package lsmcore

import (
	"fmt"

	"github.com/bsm/lsmcore/internal/coding"
	"github.com/pkg/errors"
)

// SequenceNumber is the version of a write. Valid values lie in
// [0, MaxSequenceNumber].
type SequenceNumber uint64

// MaxSequenceNumber is the largest sequence number that fits into a tag.
const MaxSequenceNumber SequenceNumber = 1<<56 - 1

// ValueType marks a record as a value or a tombstone.
type ValueType uint8

// Value types, as stored in the low byte of a tag.
const (
	TypeDeletion ValueType = 0
	TypeValue    ValueType = 1
)

// ValueTypeForSeek is the type used in lookup keys. Since entries are
// ordered by decreasing sequence number only, any valid type would do.
const ValueTypeForSeek = TypeValue

// TagSize is the size of the trailer appended to every user key.
const TagSize = 8

func (t ValueType) String() string {
	switch t {
	case TypeDeletion:
		return "DEL"
	case TypeValue:
		return "SET"
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// PackTag packs a sequence number and a value type into a tag.
func PackTag(seq SequenceNumber, vt ValueType) (uint64, error) {
	if seq > MaxSequenceNumber {
		return 0, errors.Wrapf(ErrInvalidArgument, "sequence number %d exceeds %d", seq, MaxSequenceNumber)
	}
	if vt > TypeValue {
		return 0, errors.Wrapf(ErrInvalidArgument, "unknown value type %d", vt)
	}
	return uint64(seq)<<8 | uint64(vt), nil
}

// UnpackTag splits a tag into its sequence number and value type.
func UnpackTag(tag uint64) (SequenceNumber, ValueType) {
	return SequenceNumber(tag >> 8), ValueType(tag & 0xff)
}

// AppendInternalKey appends userKey followed by the packed tag to dst.
func AppendInternalKey(dst, userKey []byte, seq SequenceNumber, vt ValueType) ([]byte, error) {
	tag, err := PackTag(seq, vt)
	if err != nil {
		return dst, err
	}
	dst = append(dst, userKey...)
	return coding.AppendFixed64(dst, tag), nil
}

// ParsedInternalKey is the decoded form of an internal key.
type ParsedInternalKey struct {
	UserKey  []byte
	Sequence SequenceNumber
	Type     ValueType
}

func (k ParsedInternalKey) String() string {
	return fmt.Sprintf("%q@%d#%s", k.UserKey, k.Sequence, k.Type)
}

// ParseInternalKey decodes an internal key. The returned UserKey aliases
// ikey.
func ParseInternalKey(ikey []byte) (ParsedInternalKey, error) {
	n := len(ikey) - TagSize
	if n < 0 {
		return ParsedInternalKey{}, errors.Wrapf(ErrCorruption, "internal key too short (%d bytes)", len(ikey))
	}

	seq, vt := UnpackTag(coding.Fixed64(ikey[n:]))
	if vt > TypeValue {
		return ParsedInternalKey{}, errors.Wrapf(ErrCorruption, "internal key has unknown value type %d", vt)
	}
	return ParsedInternalKey{UserKey: ikey[:n:n], Sequence: seq, Type: vt}, nil
}

// ExtractUserKey returns the user key portion of an internal key. Keys
// shorter than a tag are returned as-is.
func ExtractUserKey(ikey []byte) []byte {
	if n := len(ikey) - TagSize; n >= 0 {
		return ikey[:n:n]
	}
	return ikey
}

func extractTag(ikey []byte) uint64 {
	if n := len(ikey) - TagSize; n >= 0 {
		return coding.Fixed64(ikey[n:])
	}
	return 0
}

// --------------------------------------------------------------------

// InternalKeyComparator orders internal keys by increasing user key, as
// defined by the user comparator, then by decreasing sequence number.
type InternalKeyComparator struct {
	User Comparator
}

// NewInternalKeyComparator wraps a user comparator. A nil user comparator
// defaults to BytewiseComparator.
func NewInternalKeyComparator(user Comparator) *InternalKeyComparator {
	if user == nil {
		user = BytewiseComparator
	}
	return &InternalKeyComparator{User: user}
}

// Name implements Comparator.
func (c *InternalKeyComparator) Name() string { return "leveldb.InternalKeyComparator" }

// Compare implements Comparator.
func (c *InternalKeyComparator) Compare(a, b []byte) int {
	if r := c.User.Compare(ExtractUserKey(a), ExtractUserKey(b)); r != 0 {
		return r
	}

	as, _ := UnpackTag(extractTag(a))
	bs, _ := UnpackTag(extractTag(b))
	switch {
	case as > bs:
		return -1
	case as < bs:
		return 1
	}
	return 0
}

// FindShortestSeparator implements Comparator.
func (c *InternalKeyComparator) FindShortestSeparator(start, limit []byte) []byte {
	ustart := ExtractUserKey(start)
	ulimit := ExtractUserKey(limit)

	sep := c.User.FindShortestSeparator(ustart, ulimit)
	if len(sep) < len(ustart) && c.User.Compare(ustart, sep) < 0 {
		// physically shorter but logically larger, tack on the
		// earliest possible tag for the shortened user key
		return c.appendMaxTag(sep)
	}
	return start
}

// FindShortSuccessor implements Comparator.
func (c *InternalKeyComparator) FindShortSuccessor(key []byte) []byte {
	ukey := ExtractUserKey(key)

	succ := c.User.FindShortSuccessor(ukey)
	if len(succ) < len(ukey) && c.User.Compare(ukey, succ) < 0 {
		return c.appendMaxTag(succ)
	}
	return key
}

func (c *InternalKeyComparator) appendMaxTag(ukey []byte) []byte {
	ikey := make([]byte, 0, len(ukey)+TagSize)
	ikey = append(ikey, ukey...)
	return coding.AppendFixed64(ikey, uint64(MaxSequenceNumber)<<8|uint64(ValueTypeForSeek))
}

// --------------------------------------------------------------------

// LookupKey is the key used for point lookups in a memtable:
//
//	varint32(len(user key) + 8) | user key | tag(seq, ValueTypeForSeek)
//
// Its suffix starting at the user key is a valid internal key.
type LookupKey struct {
	buf    []byte
	kstart int
}

// NewLookupKey builds a lookup key for userKey as of seq.
func NewLookupKey(userKey []byte, seq SequenceNumber) (*LookupKey, error) {
	buf := make([]byte, 0, coding.MaxVarintLen32+len(userKey)+TagSize)
	buf = coding.AppendVarint32(buf, uint32(len(userKey)+TagSize))
	kstart := len(buf)

	buf, err := AppendInternalKey(buf, userKey, seq, ValueTypeForSeek)
	if err != nil {
		return nil, err
	}
	return &LookupKey{buf: buf, kstart: kstart}, nil
}

// MemtableKey returns the length-prefixed internal key.
func (k *LookupKey) MemtableKey() []byte { return k.buf }

// InternalKey returns the internal key.
func (k *LookupKey) InternalKey() []byte { return k.buf[k.kstart:] }

// UserKey returns the user key.
func (k *LookupKey) UserKey() []byte { return k.buf[k.kstart : len(k.buf)-TagSize] }

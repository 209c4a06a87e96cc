package lsmcore

import "errors"

var (
	// ErrCorruption is returned when encoded data violates its format.
	// It only invalidates the block or iterator that detected it.
	ErrCorruption = errors.New("lsmcore: corruption")

	// ErrInvalidArgument is returned when a caller violates an API
	// contract, e.g. a duplicate insert or an out-of-order append.
	ErrInvalidArgument = errors.New("lsmcore: invalid argument")
)

// KeyState is the outcome of a point lookup.
type KeyState int

// Lookup outcomes.
const (
	KeyNotFound KeyState = iota // no visible record for the key
	KeyFound                    // the newest visible record holds a value
	KeyDeleted                  // the newest visible record is a tombstone
)

func (s KeyState) String() string {
	switch s {
	case KeyFound:
		return "found"
	case KeyDeleted:
		return "deleted"
	default:
		return "not found"
	}
}

// Iterator is a bidirectional cursor over sorted key/value pairs.
//
// Key and Value return buffers that are only valid until the next cursor
// move and must not be modified.
type Iterator interface {
	// Valid returns true if the cursor is positioned at an entry.
	Valid() bool
	// SeekToFirst positions the cursor at the first entry.
	SeekToFirst()
	// SeekToLast positions the cursor at the last entry.
	SeekToLast()
	// Seek positions the cursor at the first entry with a key >= target.
	Seek(target []byte)
	// Next advances the cursor. REQUIRES: Valid().
	Next()
	// Prev moves the cursor back. REQUIRES: Valid().
	Prev()
	// Key returns the key of the current entry.
	Key() []byte
	// Value returns the value of the current entry.
	Value() []byte
	// Err returns the first error encountered, if any.
	Err() error
}

// --------------------------------------------------------------------

// Compression is the compression codec of sealed blocks.
type Compression byte

// IsValid returns true if c is a known codec.
func (c Compression) IsValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// Supported compression codecs.
const (
	SnappyCompression Compression = iota
	NoCompression
	S2Compression
	unknownCompression
)

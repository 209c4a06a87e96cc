package block

import (
	"hash/crc32"
	"sync"

	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/internal/coding"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
	"github.com/pkg/errors"
)

// Block compression type indicators, as stored in the trailer of sealed
// blocks.
const (
	blockNoCompression     = 0
	blockSnappyCompression = 1
	blockS2Compression     = 2
)

// TrailerSize is the size of the trailer of sealed blocks.
const TrailerSize = 5

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// maskedChecksum returns the masked crc32c of p, as used by leveldb.
func maskedChecksum(p []byte) uint32 {
	c := crc32.Checksum(p, crcTable)
	return (c>>15 | c<<17) + 0xa282ead8
}

// seal compresses contents according to c and appends the trailer. The
// compressed form is only used if it saves at least 25%.
func seal(dst, contents []byte, c lsmcore.Compression, tmp *[]byte) []byte {
	body, ctype := contents, byte(blockNoCompression)

	switch c {
	case lsmcore.SnappyCompression:
		*tmp = snappy.Encode((*tmp)[:cap(*tmp)], contents)
		if len(*tmp) < len(contents)-len(contents)/4 {
			body, ctype = *tmp, blockSnappyCompression
		}
	case lsmcore.S2Compression:
		*tmp = s2.Encode((*tmp)[:cap(*tmp)], contents)
		if len(*tmp) < len(contents)-len(contents)/4 {
			body, ctype = *tmp, blockS2Compression
		}
	}

	n := len(dst)
	dst = append(dst, body...)
	dst = append(dst, ctype)
	return coding.AppendFixed32(dst, maskedChecksum(dst[n:]))
}

// Decode verifies and decompresses a sealed block, as produced by Writer.
// Uncompressed blocks alias raw. Call Release on the returned block to
// recycle decompression buffers.
func Decode(raw []byte) (*Block, error) {
	if len(raw) < TrailerSize {
		return nil, errors.Wrapf(lsmcore.ErrCorruption, "block: sealed block too short (%d bytes)", len(raw))
	}

	n := len(raw) - TrailerSize
	if exp, act := coding.Fixed32(raw[n+1:]), maskedChecksum(raw[:n+1]); exp != act {
		return nil, errors.Wrapf(lsmcore.ErrCorruption, "block: checksum mismatch, expected %08x, got %08x", exp, act)
	}

	body := raw[:n]
	switch raw[n] {
	case blockNoCompression:
		return New(body)
	case blockSnappyCompression:
		sz, err := snappy.DecodedLen(body)
		if err != nil {
			return nil, errors.Wrap(lsmcore.ErrCorruption, err.Error())
		}

		plain := fetchBuffer(sz)
		data, err := snappy.Decode(plain, body)
		if err != nil {
			releaseBuffer(plain)
			return nil, errors.Wrap(lsmcore.ErrCorruption, err.Error())
		}
		return newPooled(data)
	case blockS2Compression:
		sz, err := s2.DecodedLen(body)
		if err != nil {
			return nil, errors.Wrap(lsmcore.ErrCorruption, err.Error())
		}

		plain := fetchBuffer(sz)
		data, err := s2.Decode(plain, body)
		if err != nil {
			releaseBuffer(plain)
			return nil, errors.Wrap(lsmcore.ErrCorruption, err.Error())
		}
		return newPooled(data)
	}
	return nil, errors.Wrapf(lsmcore.ErrCorruption, "block: bad compression type %d", raw[n])
}

func newPooled(data []byte) (*Block, error) {
	b, err := New(data)
	if err != nil {
		releaseBuffer(data)
		return nil, err
	}
	b.pooled = true
	return b, nil
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p[:0])
	}
}

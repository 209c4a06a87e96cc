package block_test

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/bsm/lsmcore"
	"github.com/bsm/lsmcore/block"
	"github.com/bsm/lsmcore/internal/coding"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block", func() {
	It("should reject short blocks", func() {
		_, err := block.New([]byte{0, 0, 0})
		Expect(err).To(MatchError(lsmcore.ErrCorruption))
		_, err = block.New(nil)
		Expect(err).To(MatchError(lsmcore.ErrCorruption))
	})

	It("should reject inconsistent restart counts", func() {
		var data []byte
		for _, o := range []uint32{0, 10, 20} {
			data = coding.AppendFixed32(data, o)
		}
		_, err := block.New(coding.AppendFixed32(data, 4))
		Expect(err).To(MatchError(lsmcore.ErrCorruption))

		_, err = block.New(coding.AppendFixed32(nil, 1))
		Expect(err).To(MatchError(lsmcore.ErrCorruption))
	})

	It("should reject bad restart offsets", func() {
		data := buildBlock(1, []kv{{"a", "1"}, {"b", "2"}})
		Expect(openBlock(data).RestartOffsets()).To(Equal([]int{0, 5}))

		// out of order
		bad := append([]byte(nil), data...)
		copy(bad[len(bad)-12:], coding.AppendFixed32(nil, 5))
		copy(bad[len(bad)-8:], coding.AppendFixed32(nil, 0))
		_, err := block.New(bad)
		Expect(err).To(MatchError(lsmcore.ErrCorruption))

		// entries before the first restart
		bad = coding.AppendFixed32(append([]byte(nil), data[:10]...), 5)
		bad = coding.AppendFixed32(bad, 1)
		_, err = block.New(bad)
		Expect(err).To(MatchError(lsmcore.ErrCorruption))

		// beyond the entry data
		bad = append([]byte(nil), data...)
		copy(bad[len(bad)-8:], coding.AppendFixed32(nil, 10))
		_, err = block.New(bad)
		Expect(err).To(MatchError(lsmcore.ErrCorruption))
	})

	It("should handle empty blocks", func() {
		data := block.NewBuilder(nil).Finish()
		Expect(coding.Fixed32(data[len(data)-4:])).To(Equal(uint32(1)))

		blk := openBlock(data)
		Expect(blk.RestartOffsets()).To(Equal([]int{0}))

		it := blk.NewIterator(nil)
		Expect(it.Valid()).To(BeFalse())
		it.SeekToFirst()
		Expect(it.Valid()).To(BeFalse())
		it.SeekToLast()
		Expect(it.Valid()).To(BeFalse())
		it.Seek([]byte("a"))
		Expect(it.Valid()).To(BeFalse())
		Expect(it.Err()).NotTo(HaveOccurred())
	})

	It("should handle blocks without restarts", func() {
		it := openBlock(coding.AppendFixed32(nil, 0)).NewIterator(nil)
		it.SeekToFirst()
		Expect(it.Valid()).To(BeFalse())
		it.Seek([]byte("a"))
		Expect(it.Valid()).To(BeFalse())
		Expect(it.Err()).NotTo(HaveOccurred())
	})

	It("should handle empty keys", func() {
		data := buildBlock(2, []kv{{"", "test"}})
		it := openBlock(data).NewIterator(nil)

		it.Seek(nil)
		Expect(it.Valid()).To(BeTrue())
		Expect(it.Key()).To(BeEmpty())
		Expect(it.Value()).To(Equal([]byte("test")))

		it.Next()
		Expect(it.Valid()).To(BeFalse())
	})

	table.DescribeTable("should round-trip",
		func(interval, n int) {
			kvs := seedKVs(n)
			blk := openBlock(buildBlock(interval, kvs))
			Expect(blk.NumRestarts()).To(Equal((n + interval - 1) / interval))

			Expect(forward(blk.NewIterator(nil))).To(Equal(kvs))
			Expect(backward(blk.NewIterator(nil))).To(Equal(reversed(kvs)))
		},
		table.Entry("interval 1", 1, 10),
		table.Entry("N-1 entries", 4, 3),
		table.Entry("N entries", 4, 4),
		table.Entry("N+1 entries", 4, 5),
		table.Entry("single entry", 4, 1),
		table.Entry("many entries", 16, 1000),
	)

	It("should reproduce the sample block", func() {
		var kvs []kv
		for _, k := range sampleKeys {
			kvs = append(kvs, kv{k, k})
		}
		blk := openBlock(buildBlock(3, kvs))
		Expect(blk.RestartOffsets()).To(Equal([]int{0, 18, 42}))
		Expect(forward(blk.NewIterator(nil))).To(Equal(kvs))
	})

	Describe("Iterator", func() {
		var subject *block.Iterator

		BeforeEach(func() {
			var kvs []kv
			for _, k := range sampleKeys {
				kvs = append(kvs, kv{k, k})
			}
			subject = openBlock(buildBlock(3, kvs)).NewIterator(nil)
		})

		It("should seek", func() {
			for _, tc := range []struct{ target, exp string }{
				{"", "1"},
				{"1", "1"},
				{"11", "12"},
				{"124", "abc"},
				{"abc", "abc"},
				{"abd", "abd"},
				{"abe", "acd"},
				{"b", "bbb"},
				{"bbb", "bbb"},
			} {
				subject.Seek([]byte(tc.target))
				Expect(subject.Valid()).To(BeTrue(), "for %q", tc.target)
				Expect(string(subject.Key())).To(Equal(tc.exp), "for %q", tc.target)
				Expect(string(subject.Value())).To(Equal(tc.exp), "for %q", tc.target)
			}

			subject.Seek([]byte("c"))
			Expect(subject.Valid()).To(BeFalse())
			Expect(subject.Err()).NotTo(HaveOccurred())
		})

		It("should move back and forth", func() {
			subject.Seek([]byte("abc"))
			subject.Prev()
			Expect(string(subject.Key())).To(Equal("123"))
			subject.Next()
			Expect(string(subject.Key())).To(Equal("abc"))
			subject.Next()
			Expect(string(subject.Key())).To(Equal("abd"))
			subject.Prev()
			subject.Prev()
			subject.Prev()
			Expect(string(subject.Key())).To(Equal("12"))

			subject.SeekToFirst()
			subject.Prev()
			Expect(subject.Valid()).To(BeFalse())

			subject.SeekToLast()
			Expect(string(subject.Key())).To(Equal("bbb"))
			subject.Next()
			Expect(subject.Valid()).To(BeFalse())
		})

		It("should seek randomly", func() {
			kvs := seedKVs(500)
			it := openBlock(buildBlock(7, kvs)).NewIterator(nil)
			rnd := rand.New(rand.NewSource(1))

			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("key%06d", rnd.Intn(1600))
				if i%2 == 0 {
					key = key[:len(key)-1]
				}

				pos := sort.Search(len(kvs), func(j int) bool { return kvs[j].Key >= key })
				it.Seek([]byte(key))
				if pos == len(kvs) {
					Expect(it.Valid()).To(BeFalse(), "for %q", key)
					continue
				}
				Expect(it.Valid()).To(BeTrue(), "for %q", key)
				Expect(string(it.Key())).To(Equal(kvs[pos].Key), "for %q", key)
			}
		})

		It("should support internal keys", func() {
			icmp := lsmcore.NewInternalKeyComparator(nil)
			b := block.NewBuilder(&block.Options{Comparator: icmp, RestartInterval: 2})
			for _, k := range []struct {
				ukey string
				seq  lsmcore.SequenceNumber
			}{{"a", 5}, {"a", 3}, {"b", 9}, {"b", 1}, {"c", 2}} {
				key, err := lsmcore.AppendInternalKey(nil, []byte(k.ukey), k.seq, lsmcore.TypeValue)
				Expect(err).NotTo(HaveOccurred())
				Expect(b.Add(key, []byte(k.ukey))).To(Succeed())
			}

			it := openBlock(b.Finish()).NewIterator(icmp)
			lk, err := lsmcore.NewLookupKey([]byte("b"), 4)
			Expect(err).NotTo(HaveOccurred())

			it.Seek(lk.InternalKey())
			Expect(it.Valid()).To(BeTrue())
			pk, err := lsmcore.ParseInternalKey(it.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(pk.UserKey)).To(Equal("b"))
			Expect(pk.Sequence).To(Equal(lsmcore.SequenceNumber(1)))
		})
	})

	Describe("corruption", func() {
		It("should invalidate iterators on oversized lengths", func() {
			data := buildBlock(16, []kv{{"a", "x"}})
			Expect(data[:5]).To(Equal([]byte{0, 1, 1, 'a', 'x'}))
			data[2] = 100

			it := openBlock(data).NewIterator(nil)
			it.SeekToFirst()
			Expect(it.Valid()).To(BeFalse())
			Expect(it.Err()).To(MatchError(lsmcore.ErrCorruption))

			// errors are sticky
			it.SeekToLast()
			Expect(it.Valid()).To(BeFalse())
			it.Seek([]byte("a"))
			Expect(it.Valid()).To(BeFalse())
		})

		It("should detect bad shared prefixes", func() {
			data := buildBlock(16, []kv{{"a", "x"}})
			data[0] = 1

			it := openBlock(data).NewIterator(nil)
			it.Seek([]byte("a"))
			Expect(it.Valid()).To(BeFalse())
			Expect(it.Err()).To(MatchError(lsmcore.ErrCorruption))
		})

		It("should detect corrupt restart keys during seeks", func() {
			data := buildBlock(1, []kv{{"a", "1"}, {"b", "2"}, {"c", "3"}})
			data[5] = 1 // second entry claims a shared prefix

			it := openBlock(data).NewIterator(nil)
			it.Seek([]byte("c"))
			Expect(it.Valid()).To(BeFalse())
			Expect(it.Err()).To(MatchError(lsmcore.ErrCorruption))
		})

		It("should detect truncated varints", func() {
			data := buildBlock(16, []kv{{"a", "x"}})
			data[0] = 0x80
			data[1] = 0x80
			data[2] = 0x80
			data[3] = 0x80
			data[4] = 0x80

			it := openBlock(data).NewIterator(nil)
			it.SeekToFirst()
			Expect(it.Valid()).To(BeFalse())
			Expect(it.Err()).To(MatchError(lsmcore.ErrCorruption))
		})
	})
})

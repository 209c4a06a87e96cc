package lsmcore_test

import (
	"math/rand"

	"github.com/bsm/lsmcore"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/syndtr/goleveldb/leveldb/comparer"
)

var _ = Describe("BytewiseComparator", func() {
	subject := lsmcore.BytewiseComparator

	It("should compare", func() {
		Expect(subject.Compare([]byte("a"), []byte("b"))).To(Equal(-1))
		Expect(subject.Compare([]byte("b"), []byte("a"))).To(Equal(1))
		Expect(subject.Compare([]byte("ab"), []byte("ab"))).To(Equal(0))
		Expect(subject.Compare([]byte("ab"), []byte("abc"))).To(Equal(-1))
		Expect(subject.Compare(nil, []byte{})).To(Equal(0))
		Expect(subject.Name()).To(Equal("leveldb.BytewiseComparator"))
	})

	It("should find shortest separators", func() {
		Expect(subject.FindShortestSeparator([]byte("1111"), []byte("13345"))).To(Equal([]byte("12")))
		Expect(subject.FindShortestSeparator([]byte("foo"), []byte("hello"))).To(Equal([]byte("g")))

		// adjacent bytes
		Expect(subject.FindShortestSeparator([]byte("abc"), []byte("abd"))).To(Equal([]byte("abc")))
		// prefixes
		Expect(subject.FindShortestSeparator([]byte("foo"), []byte("foobar"))).To(Equal([]byte("foo")))
		Expect(subject.FindShortestSeparator([]byte("foobar"), []byte("foo"))).To(Equal([]byte("foobar")))
		Expect(subject.FindShortestSeparator([]byte{0xff, 1}, []byte{0xff, 0xff})).To(Equal([]byte{0xff, 2}))
		Expect(subject.FindShortestSeparator([]byte{1, 0xff}, []byte{2})).To(Equal([]byte{1, 0xff}))
		Expect(subject.FindShortestSeparator([]byte{1, 0xff}, []byte{3})).To(Equal([]byte{2}))
	})

	It("should find short successors", func() {
		Expect(subject.FindShortSuccessor([]byte("1111"))).To(Equal([]byte("2")))
		Expect(subject.FindShortSuccessor([]byte{0xff, 0xff, 0xff})).To(Equal([]byte{0xff, 0xff, 0xff}))
		Expect(subject.FindShortSuccessor([]byte{0xff, 0x01, 0xff})).To(Equal([]byte{0xff, 0x02}))
		Expect(subject.FindShortSuccessor(nil)).To(BeEmpty())
	})

	It("should not modify inputs", func() {
		start, limit := []byte("1111"), []byte("13345")
		_ = subject.FindShortestSeparator(start, limit)
		_ = subject.FindShortSuccessor(start)
		Expect(string(start)).To(Equal("1111"))
		Expect(string(limit)).To(Equal("13345"))
	})

	It("should agree with goleveldb", func() {
		rnd := rand.New(rand.NewSource(1))
		alpha := []byte{0x00, 0x01, 'a', 'b', 'c', 0xfe, 0xff}
		randKey := func() []byte {
			key := make([]byte, rnd.Intn(6))
			for i := range key {
				key[i] = alpha[rnd.Intn(len(alpha))]
			}
			return key
		}

		for i := 0; i < 2000; i++ {
			a, b := randKey(), randKey()
			if subject.Compare(a, b) > 0 {
				a, b = b, a
			}

			exp := comparer.DefaultComparer.Separator(nil, a, b)
			if exp == nil {
				exp = a
			}
			sep := subject.FindShortestSeparator(a, b)
			Expect(sep).To(Equal(exp), "separator(%x, %x)", a, b)
			Expect(subject.Compare(a, sep)).To(BeNumerically("<=", 0))
			if subject.Compare(a, b) < 0 {
				Expect(subject.Compare(sep, b)).To(BeNumerically("<", 0))
			}

			exp = comparer.DefaultComparer.Successor(nil, a)
			if exp == nil {
				exp = a
			}
			Expect(subject.FindShortSuccessor(a)).To(Equal(exp), "successor(%x)", a)
		}
	})
})

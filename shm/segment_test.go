//go:build linux

package shm_test

import (
	"fmt"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/shm"
)

var _ = Describe("Segment", func() {
	var name string

	BeforeEach(func() {
		name = fmt.Sprintf("/test.shm.%d.%d", os.Getpid(), GinkgoParallelProcess())
	})

	AfterEach(func() {
		os.Remove(shm.Path(name))
	})

	It("should escape nested names into one file", func() {
		Expect(shm.Path("/a/b")).To(HaveSuffix("a%2Fb"))
	})

	It("should create a zeroed region with an even counter", func() {
		w, err := shm.Create(name, 16)
		Expect(err).ToNot(HaveOccurred())
		defer w.Close()

		info, err := os.Stat(shm.Path(name))
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Size()).To(Equal(int64(shm.HeaderSize + 16)))
		Expect(w.Seq()).To(Equal(uint32(0)))
		Expect(w.Record()).To(Equal(make([]byte, 16)))
	})

	It("should reuse a stale file", func() {
		Expect(os.WriteFile(shm.Path(name), []byte("stale bytes"), 0o600)).
			To(Succeed())

		w, err := shm.Create(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer w.Close()

		Expect(w.Record()).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should publish to a read-only mapping", func() {
		w, err := shm.Create(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer w.Close()

		r, err := shm.Open(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		w.BeginWrite()
		Expect(r.Seq() % 2).To(Equal(uint32(1)))
		copy(w.Record(), []byte{1, 2, 3, 4})
		w.EndWrite()

		dst := make([]byte, 4)
		seq, err := r.ReadConsistent(dst)

		Expect(err).ToNot(HaveOccurred())
		Expect(seq).To(Equal(uint32(2)))
		Expect(dst).To(Equal([]byte{1, 2, 3, 4}))
		Expect(r.Writable()).To(BeFalse())
	})

	It("should give up on a writer that never finishes", func() {
		w, err := shm.Create(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer w.Close()

		w.BeginWrite()

		_, err = w.ReadConsistent(make([]byte, 4))
		Expect(err).To(MatchError(shm.ErrContended))
	})

	It("should refuse a segment smaller than the layout", func() {
		w, err := shm.Create(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer w.Close()

		_, err = shm.Open(name, 400)
		Expect(err).To(MatchError(shm.ErrTooSmall))
	})

	It("should fail to open a missing segment", func() {
		_, err := shm.Open(name+".missing", 4)
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("should panic when a reader writes", func() {
		w, err := shm.Create(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer w.Close()

		r, err := shm.Open(name, 4)
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		Expect(func() { r.BeginWrite() }).To(Panic())
	})

	DescribeTable("should never expose a torn record",
		func(size int) {
			w, err := shm.Create(name, size)
			Expect(err).ToNot(HaveOccurred())
			defer w.Close()

			r, err := shm.Open(name, size)
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			var wg sync.WaitGroup
			done := make(chan struct{})

			wg.Add(1)
			go func() {
				defer wg.Done()

				rec := w.Record()
				for v := byte(1); ; v++ {
					select {
					case <-done:
						return
					default:
					}

					w.BeginWrite()
					for i := range rec {
						rec[i] = v
					}
					w.EndWrite()
				}
			}()

			dst := make([]byte, size)
			torn := 0
			for i := 0; i < 2000; i++ {
				if _, err := r.ReadConsistent(dst); err != nil {
					continue
				}

				for _, b := range dst {
					if b != dst[0] {
						torn++
						break
					}
				}
			}

			close(done)
			wg.Wait()

			Expect(torn).To(BeZero())
		},
		Entry("10 bytes", 10),
		Entry("1000 bytes", 1000),
		Entry("10000 bytes", 10000),
		Entry("100000 bytes", 100000),
	)
})

//go:build linux

package presence_test

import (
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/presence"
)

var _ = Describe("Server", func() {
	var (
		identity string
		server   *presence.Server
	)

	BeforeEach(func() {
		identity = presence.Identity(fmt.Sprintf("test.presence.%d.%d",
			os.Getpid(), GinkgoRandomSeed()))

		var err error
		server, err = presence.Announce(identity, []byte(`{"owner":"a"}`))
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should send the payload after an update round", func() {
		conn, err := presence.Dial(identity)
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		_, ok, err := conn.TryRecv()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())

		Expect(server.Update()).To(Succeed())

		Eventually(func() bool {
			_, ok, _ := conn.TryRecv()
			return ok
		}).Should(BeTrue())

		payload, _, _ := conn.TryRecv()
		Expect(string(payload)).To(Equal(`{"owner":"a"}`))
		Expect(server.NumClients()).To(Equal(1))
		Expect(conn.Closed()).To(BeFalse())
	})

	It("should evict clients that hung up", func() {
		conn, err := presence.Dial(identity)
		Expect(err).ToNot(HaveOccurred())

		Expect(server.Update()).To(Succeed())
		Expect(server.NumClients()).To(Equal(1))

		conn.Close()

		Eventually(func() int {
			server.Update()
			return server.NumClients()
		}).Should(BeZero())
	})

	It("should refuse a second owner and reveal the first", func() {
		stop := make(chan struct{})
		defer close(stop)

		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					server.Update()
					time.Sleep(time.Millisecond)
				}
			}
		}()

		_, err := presence.Announce(identity, []byte("b"))

		Expect(err).To(MatchError(presence.ErrNameTaken))

		var taken *presence.NameTakenError
		Expect(err).To(BeAssignableToTypeOf(taken))
		taken = err.(*presence.NameTakenError)
		Expect(string(taken.Payload)).To(Equal(`{"owner":"a"}`))
	})

	It("should serve replaced payloads to new clients", func() {
		Expect(server.SetPayload([]byte("v2"))).To(Succeed())

		conn, err := presence.Dial(identity)
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		server.Update()

		Eventually(func() string {
			payload, _, _ := conn.TryRecv()
			return string(payload)
		}).Should(Equal("v2"))
	})

	It("should let clients notice the server closing", func() {
		conn, err := presence.Dial(identity)
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		server.Update()
		Eventually(func() bool {
			_, ok, _ := conn.TryRecv()
			return ok
		}).Should(BeTrue())

		server.Close()

		Eventually(conn.Closed).Should(BeTrue())
	})

	It("should release the identity on close", func() {
		server.Close()

		again, err := presence.Announce(identity, nil)
		Expect(err).ToNot(HaveOccurred())
		again.Close()
	})

	It("should be listed by a scan", func() {
		entries, err := presence.Scan()
		Expect(err).ToNot(HaveOccurred())

		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.Identity)
		}

		Expect(ids).To(ContainElement(identity))
	})
})

var _ = Describe("Fetch", func() {
	It("should fail fast when nobody owns the identity", func() {
		_, err := presence.Fetch(presence.Identity("test.nobody.here"),
			10*time.Millisecond)

		Expect(err).To(MatchError(presence.ErrUnavailable))
	})

	It("should time out when the owner never updates", func() {
		identity := presence.Identity(fmt.Sprintf("test.silent.%d", os.Getpid()))
		server, err := presence.Announce(identity, []byte("x"))
		Expect(err).ToNot(HaveOccurred())
		defer server.Close()

		_, err = presence.Fetch(identity, 20*time.Millisecond)

		Expect(err).To(MatchError(presence.ErrTimeout))
	})
})

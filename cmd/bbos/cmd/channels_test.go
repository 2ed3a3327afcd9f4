//go:build linux

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/datarecording"
	"github.com/sarchlab/bbos/ipc"
	"github.com/sarchlab/bbos/schema"
)

var cmdChannels int

// streaming starts a writer publishing a counter every millisecond.
func streaming() (w *ipc.Writer, stop func()) {
	cmdChannels++
	name := fmt.Sprintf("/test.cmd.%d.%d", os.Getpid(), cmdChannels)

	w, err := ipc.MakeWriterBuilder().WithoutPacing().Build(name,
		schema.MustNewType("counter", 10, schema.NewField("n", schema.Uint32)))
	Expect(err).ToNot(HaveOccurred())

	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := uint32(1); ; i++ {
			select {
			case <-quit:
				return
			default:
			}

			w.Publish(func(rec schema.Record) error {
				schema.SetValue(rec, "n", i)
				return nil
			})
			time.Sleep(time.Millisecond)
		}
	}()

	return w, func() {
		close(quit)
		<-done
		Expect(w.Close()).To(Succeed())
	}
}

var _ = Describe("Channel commands", func() {
	It("should list a live writer", func() {
		w, stop := streaming()
		defer stop()

		out, err := run("list", "--timeout", "1s")
		Expect(err).ToNot(HaveOccurred())

		var line string
		for _, l := range strings.Split(out, "\n") {
			if strings.HasPrefix(l, w.Name()+" ") {
				line = l
			}
		}

		Expect(line).ToNot(BeEmpty())
		Expect(line).To(ContainSubstring(fmt.Sprint(os.Getpid())))
		Expect(line).To(ContainSubstring("10ms"))
		Expect(line).To(ContainSubstring("channels_test.go"))
	})

	It("should echo samples as JSON lines", func() {
		w, stop := streaming()
		defer stop()

		out, err := run("echo", w.Name(), "-n", "3", "--timeout", "2s")
		Expect(err).ToNot(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(3))

		var last float64
		for _, l := range lines {
			var e echoLine
			Expect(json.Unmarshal([]byte(l), &e)).To(Succeed())
			Expect(e.Channel).To(Equal(w.Name()))

			n := e.Fields["n"].(float64)
			Expect(n).To(BeNumerically(">", last))
			last = n
		}
	})

	It("should give up on a silent channel", func() {
		_, err := run("echo", "/test.cmd.nobody", "-n", "1", "--timeout", "50ms")
		Expect(err).To(MatchError(ipc.ErrChannelUnavailable))
	})

	It("should record a channel", func() {
		w, stop := streaming()
		defer stop()

		out := filepath.Join(GinkgoT().TempDir(), "rec")

		_, err := run("record", w.Name(), "--out", out, "--duration", "300ms")
		Expect(err).ToNot(HaveOccurred())

		r := datarecording.NewReader(out + ".sqlite3")
		defer r.Close()

		samples, total, err := r.Query(context.Background(), datarecording.SampleTable,
			datarecording.QueryParams{OrderBy: "Timestamp"})
		Expect(err).ToNot(HaveOccurred())
		Expect(total).To(BeNumerically(">", 0))

		first := samples[0].(*datarecording.SampleEntry)
		Expect(first.Channel).To(Equal(w.Name()))
		Expect(first.Payload).To(ContainSubstring(`"n":`))
	})
})

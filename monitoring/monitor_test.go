//go:build linux

package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bbos/ipc"
	"github.com/sarchlab/bbos/presence"
	"github.com/sarchlab/bbos/schema"
	"github.com/sarchlab/bbos/telemetry"
)

var monitorChannels int

func monitorChannel() string {
	monitorChannels++
	return fmt.Sprintf("/test.monitor.%d.%d", os.Getpid(), monitorChannels)
}

func entriesOf(identities ...string) ScanFunc {
	return func() ([]presence.Entry, error) {
		var entries []presence.Entry
		for _, id := range identities {
			e, ok := presence.ParseIdentity(id)
			Expect(ok).To(BeTrue())
			entries = append(entries, e)
		}

		return entries, nil
	}
}

// keepServing calls serve until the returned stop function is called.
func keepServing(serve func()) (stop func()) {
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			default:
				serve()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}

func get(m *Monitor, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		channel string
		w       *ipc.Writer
	)

	BeforeEach(func() {
		channel = monitorChannel()

		var err error
		w, err = ipc.MakeWriterBuilder().WithoutPacing().Build(channel,
			schema.MustNewType("odrive", 0,
				schema.NewField("vbus", schema.Float32),
				schema.NewField("errors", schema.Uint32, 2)))
		Expect(err).ToNot(HaveOccurred())

		Expect(w.Publish(func(rec schema.Record) error {
			schema.SetValue(rec, "vbus", float32(24.5))
			schema.Slice[uint32](rec, "errors")[1] = 3
			return nil
		})).To(Succeed())

		m = NewMonitor().WithFetchTimeout(time.Second)
	})

	AfterEach(func() {
		Expect(m.Close()).To(Succeed())
		Expect(w.Close()).To(Succeed())
	})

	It("should refuse privileged ports", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should list channels with their writers and consumers", func() {
		m.WithScanner(entriesOf(
			presence.Identity(channel),
			presence.TelemetryIdentity(channel, "viz"),
		))

		stop := keepServing(w.Poll)
		rsp := get(m, "/api/channels")
		stop()

		Expect(rsp.Code).To(Equal(http.StatusOK))

		var channels []channelRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &channels)).To(Succeed())
		Expect(channels).To(HaveLen(1))
		Expect(channels[0].Channel).To(Equal(channel))
		Expect(channels[0].Consumers).To(Equal([]string{"viz"}))
		Expect(channels[0].Writer).ToNot(BeNil())
		Expect(channels[0].Writer.PID).To(Equal(os.Getpid()))
		Expect(channels[0].Writer.DType.Equal(w.Layout().Descriptor())).To(BeTrue())
	})

	It("should serve the latest sample", func() {
		stop := keepServing(w.Poll)
		rsp := get(m, "/api/channel"+channel+"?format=json")
		stop()

		Expect(rsp.Code).To(Equal(http.StatusOK))

		var sample sampleRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &sample)).To(Succeed())
		Expect(sample.Channel).To(Equal(channel))
		Expect(sample.Fresh).To(BeTrue())
		Expect(sample.Fields["vbus"]).To(Equal(24.5))
		Expect(sample.Fields["errors"]).To(Equal([]any{0.0, 3.0}))
	})

	It("should serialize the latest sample", func() {
		stop := keepServing(w.Poll)
		rsp := get(m, "/api/channel"+channel)
		stop()

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(rsp.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should report unknown channels", func() {
		m.WithFetchTimeout(5 * time.Millisecond)

		rsp := get(m, "/api/channel"+monitorChannel()+"?format=json")

		Expect(rsp.Code).To(Equal(http.StatusNotFound))
	})

	It("should not hold other channels while one waits", func() {
		missing := monitorChannel()
		slow := make(chan int)
		go func() {
			defer GinkgoRecover()
			slow <- get(m, "/api/channel"+missing).Code
		}()

		Eventually(func() bool {
			m.readersLock.Lock()
			defer m.readersLock.Unlock()
			_, ok := m.readers[missing]
			return ok
		}).Should(BeTrue())

		stop := keepServing(w.Poll)
		start := time.Now()
		rsp := get(m, "/api/channel"+channel+"?format=json")
		elapsed := time.Since(start)
		stop()

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(elapsed).To(BeNumerically("<", 500*time.Millisecond))
		Expect(<-slow).To(Equal(http.StatusNotFound))
	})

	It("should list telemetry", func() {
		log := telemetry.MakeBuilder().WithWindow(2).Build(channel, "viz")
		defer log.Close()
		Expect(log.Announced()).To(BeTrue())

		for i := 0; i < 3; i++ {
			log.Arrive()
		}

		m.WithScanner(entriesOf(log.Identity()))

		stop := keepServing(log.Arrive)
		rsp := get(m, "/api/telemetry")
		stop()

		Expect(rsp.Code).To(Equal(http.StatusOK))

		var stats []telemetry.Stats
		Expect(json.Unmarshal(rsp.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats).To(HaveLen(1))
		Expect(stats[0].Channel).To(Equal(channel))
		Expect(stats[0].Consumer).To(Equal("viz"))
		Expect(stats[0].Window).To(Equal(2))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("recording /imu_data", 0)
		bar.IncrementFinished(5)
		other := m.CreateProgressBar("echo /drive_state", 10)
		m.CompleteProgressBar(other)

		rsp := get(m, "/api/progress")

		var bars []progressRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("recording /imu_data"))
		Expect(bars[0].Finished).To(Equal(uint64(5)))
	})

	It("should report process resources", func() {
		rsp := get(m, "/api/resource")

		Expect(rsp.Code).To(Equal(http.StatusOK))

		var res resourceRsp
		Expect(json.Unmarshal(rsp.Body.Bytes(), &res)).To(Succeed())
		Expect(res.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a CPU profile", func() {
		m.WithProfileDuration(50 * time.Millisecond)

		rsp := get(m, "/api/profile")

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(rsp.Header().Get("Content-Type")).To(Equal("application/json"))
	})

	It("should serve the page", func() {
		rsp := get(m, "/")

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(rsp.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should serve the page from a directory", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "index.html"),
			[]byte("<!DOCTYPE html><title>bench</title>"), 0o644)).To(Succeed())

		rsp := get(m.WithAssetDir(dir), "/")

		Expect(rsp.Code).To(Equal(http.StatusOK))
		Expect(rsp.Body.String()).To(ContainSubstring("bench"))
	})

	It("should start and stop the server", func() {
		m.StartServer()
		Expect(m.Port()).To(BeNumerically(">", 0))

		resp, err := http.Get(m.URL() + "/api/progress")
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})

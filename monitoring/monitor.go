// Package monitoring serves an HTTP view of the channels of a host.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/bbos/ipc"
	"github.com/sarchlab/bbos/monitoring/web"
	"github.com/sarchlab/bbos/presence"
	"github.com/sarchlab/bbos/telemetry"
)

// DefaultFetchTimeout bounds the wait for one presence payload.
const DefaultFetchTimeout = 200 * time.Millisecond

// ScanFunc lists the identities of the host.
type ScanFunc func() ([]presence.Entry, error)

// Monitor serves the channels, telemetry and resources of the host.
type Monitor struct {
	portNumber   int
	fetchTimeout time.Duration
	profileTime  time.Duration
	scan         ScanFunc
	assetDir     string

	readersLock sync.Mutex
	readers     map[string]*sampleReader

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
	server   *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		fetchTimeout: DefaultFetchTimeout,
		profileTime:  time.Second,
		scan:         presence.Scan,
		readers:      make(map[string]*sampleReader),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		slog.Warn("bbos/monitoring: port not allowed, using a random port",
			"port", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithFetchTimeout sets how long a presence fetch may wait.
func (m *Monitor) WithFetchTimeout(d time.Duration) *Monitor {
	m.fetchTimeout = d
	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileTime = d
	return m
}

// WithScanner replaces the host scan.
func (m *Monitor) WithScanner(scan ScanFunc) *Monitor {
	m.scan = scan
	return m
}

// WithAssetDir serves the page from a directory instead of the binary.
func (m *Monitor) WithAssetDir(dir string) *Monitor {
	m.assetDir = dir
	return m
}

func (m *Monitor) assets() http.FileSystem {
	b := web.MakeAssetsBuilder().WithEnv()
	if m.assetDir != "" {
		b = b.WithDir(m.assetDir)
	}

	return b.Build()
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/channels", m.listChannels)
	r.HandleFunc("/api/telemetry", m.listTelemetry)
	r.HandleFunc("/api/channel/{name:.+}", m.latestSample)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(m.assets()))

	return r
}

// StartServer starts serving in the background.
func (m *Monitor) StartServer() {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("bbos/monitoring: serving", "url", m.URL())

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()
}

// Port returns the port the server listens on, 0 before StartServer.
func (m *Monitor) Port() int {
	if m.listener == nil {
		return 0
	}

	return m.listener.Addr().(*net.TCPAddr).Port
}

// URL returns the address of the page.
func (m *Monitor) URL() string {
	return fmt.Sprintf("http://localhost:%d", m.Port())
}

// Close stops the server and releases the readers.
func (m *Monitor) Close() error {
	var err error
	if m.server != nil {
		err = m.server.Close()
	}

	m.readersLock.Lock()
	defer m.readersLock.Unlock()

	for name, r := range m.readers {
		r.lock.Lock()
		r.reader.Close()
		r.lock.Unlock()
		delete(m.readers, name)
	}

	return err
}

type channelRsp struct {
	Channel   string           `json:"channel"`
	Writer    *presence.Record `json:"writer,omitempty"`
	Consumers []string         `json:"consumers"`
}

func (m *Monitor) listChannels(w http.ResponseWriter, _ *http.Request) {
	entries, err := m.scan()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rsp := []channelRsp{}

	for _, e := range presence.Channels(entries) {
		c := channelRsp{Channel: e.Channel, Consumers: []string{}}

		if payload, err := presence.Fetch(e.Identity, m.fetchTimeout); err == nil {
			if rec, err := presence.DecodeRecord(payload); err == nil {
				c.Writer = &rec
			}
		}

		for _, t := range presence.Consumers(entries, e.Channel) {
			c.Consumers = append(c.Consumers, t.Consumer)
		}

		rsp = append(rsp, c)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listTelemetry(w http.ResponseWriter, _ *http.Request) {
	entries, err := m.scan()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rsp := []telemetry.Stats{}

	for _, e := range entries {
		if !e.IsTelemetry() {
			continue
		}

		payload, err := presence.Fetch(e.Identity, m.fetchTimeout)
		if err != nil || len(payload) == 0 {
			continue
		}

		if stats, err := telemetry.DecodeStats(payload); err == nil {
			rsp = append(rsp, stats)
		}
	}

	writeJSON(w, rsp)
}

type sampleRsp struct {
	Channel   string         `json:"channel"`
	Timestamp int64          `json:"timestamp"`
	Fresh     bool           `json:"fresh"`
	Fields    map[string]any `json:"fields"`
}

// sampleReader serializes the requests of one channel. Requests of
// different channels wait in parallel.
type sampleReader struct {
	lock   sync.Mutex
	reader *ipc.Reader
}

func (m *Monitor) readerOf(name string) *sampleReader {
	m.readersLock.Lock()
	defer m.readersLock.Unlock()

	r, ok := m.readers[name]
	if !ok {
		r = &sampleReader{
			reader: ipc.MakeReaderBuilder().
				WithoutPacing().
				WithoutTelemetry().
				Build(name),
		}
		m.readers[name] = r
	}

	return r
}

func (m *Monitor) latestSample(w http.ResponseWriter, r *http.Request) {
	name := presence.Normalize(mux.Vars(r)["name"])

	sr := m.readerOf(name)
	sr.lock.Lock()
	defer sr.lock.Unlock()

	reader := sr.reader

	fresh := reader.WaitReady(m.fetchTimeout)
	if !reader.Readable() {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}

	rsp := sampleRsp{
		Channel:   name,
		Timestamp: reader.Data().Timestamp(),
		Fresh:     fresh,
		Fields:    reader.Data().Map(),
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, rsp)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(rsp)
	serializer.SetMaxDepth(3)

	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: memory.RSS})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileTime)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

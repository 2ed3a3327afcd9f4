package presence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ProcNetUnix lists the unix sockets of the host.
const ProcNetUnix = "/proc/net/unix"

// acceptCon is the socket flag of a listening socket.
const acceptCon = 0x10000

// Scan lists the identities announced on this host.
func Scan() ([]Entry, error) {
	f, err := os.Open(ProcNetUnix)
	if err != nil {
		return nil, fmt.Errorf("scanning presence: %w", err)
	}
	defer f.Close()

	return ParseSocketTable(f)
}

// ParseSocketTable parses the /proc/net/unix format and keeps the listening
// abstract sockets whose name ends with Suffix. Entries are sorted by
// identity.
func ParseSocketTable(r io.Reader) ([]Entry, error) {
	seen := make(map[string]bool)
	var entries []Entry

	scanner := bufio.NewScanner(r)
	header := true

	for scanner.Scan() {
		if header {
			header = false
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 8 {
			continue
		}

		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil || flags&acceptCon == 0 {
			continue
		}

		e, ok := ParseIdentity(fields[7])
		if !ok || seen[e.Identity] {
			continue
		}

		seen[e.Identity] = true
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading socket table: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identity < entries[j].Identity
	})

	return entries, nil
}

// Channels returns only the channel identities of entries.
func Channels(entries []Entry) []Entry {
	var out []Entry

	for _, e := range entries {
		if !e.IsTelemetry() {
			out = append(out, e)
		}
	}

	return out
}

// Consumers returns the telemetry entries of one channel.
func Consumers(entries []Entry, channel string) []Entry {
	channel = Normalize(channel)

	var out []Entry

	for _, e := range entries {
		if e.IsTelemetry() && e.Channel == channel {
			out = append(out, e)
		}
	}

	return out
}

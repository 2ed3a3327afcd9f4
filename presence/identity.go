// Package presence announces channel ownership and discovers live channels.
//
// Every writer binds a SOCK_SEQPACKET listener in the Linux abstract unix
// namespace under the identity of its channel. Binding is the ownership
// lock: a second writer fails to bind. Each client that connects receives
// one packet, the presence record, and is then only watched for hang-up.
// Telemetry logs use the same mechanism under their own identity. Sockets
// carry metadata only; records travel through shared memory.
package presence

import (
	"errors"
	"strings"
)

// Suffix ends every identity owned by this package.
const Suffix = ".bbos"

const telemetryMarker = "__timelog"

// PayloadSize is the largest payload an identity can serve.
const PayloadSize = 4096

var (
	// ErrNameTaken is returned when another process owns the identity.
	ErrNameTaken = errors.New("presence: identity already announced")

	// ErrUnavailable is returned when nobody serves the identity.
	ErrUnavailable = errors.New("presence: identity not announced")

	// ErrClosed is returned once the peer hung up.
	ErrClosed = errors.New("presence: peer closed")

	// ErrTimeout is returned when a fetch did not complete in time.
	ErrTimeout = errors.New("presence: timed out")

	// ErrPayloadTooLarge is returned for payloads above PayloadSize.
	ErrPayloadTooLarge = errors.New("presence: payload too large")

	// ErrUnsupported is returned on platforms without abstract sockets.
	ErrUnsupported = errors.New("presence: not supported on this platform")
)

// NameTakenError reports the identity and, when the owner answered in time,
// its payload.
type NameTakenError struct {
	Identity string
	Payload  []byte
}

func (e *NameTakenError) Error() string {
	return ErrNameTaken.Error() + ": " + e.Identity
}

// Unwrap makes errors.Is match ErrNameTaken.
func (e *NameTakenError) Unwrap() error {
	return ErrNameTaken
}

// Normalize returns the channel name with exactly one leading slash.
func Normalize(channel string) string {
	return "/" + strings.TrimLeft(channel, "/")
}

// Identity returns the abstract socket name of a channel.
func Identity(channel string) string {
	return "@" + Normalize(channel) + Suffix
}

// TelemetryIdentity returns the abstract socket name of the telemetry log
// of one consumer of a channel.
func TelemetryIdentity(channel, consumer string) string {
	return "@" + Normalize(channel) + "__" + consumer + telemetryMarker + Suffix
}

// Entry is one identity found by a scan.
type Entry struct {
	Identity string

	// Channel is the normalized channel name.
	Channel string

	// Consumer is set for telemetry identities.
	Consumer string
}

// IsTelemetry reports whether the entry is a telemetry log.
func (e Entry) IsTelemetry() bool {
	return e.Consumer != ""
}

// ParseIdentity splits an identity into its channel and consumer.
func ParseIdentity(identity string) (Entry, bool) {
	if !strings.HasPrefix(identity, "@/") || !strings.HasSuffix(identity, Suffix) {
		return Entry{}, false
	}

	body := strings.TrimSuffix(strings.TrimPrefix(identity, "@"), Suffix)
	e := Entry{Identity: identity, Channel: body}

	if rest, ok := strings.CutSuffix(body, telemetryMarker); ok {
		// Channel names may contain "__", so the consumer follows the last one.
		i := strings.LastIndex(rest, "__")
		if i < 0 || i+2 == len(rest) {
			return Entry{}, false
		}

		e.Channel = rest[:i]
		e.Consumer = rest[i+2:]
	}

	if e.Channel == "/" {
		return Entry{}, false
	}

	return e, true
}

package association

import (
	"time"

	"github.com/datawire/sctp-proto/pkg/sctp/timer"
)

// Side distinguishes which end of the handshake this association plays.
type Side int

const (
	ClientSide Side = iota
	ServerSide
)

func (s Side) String() string {
	if s == ServerSide {
		return "server"
	}
	return "client"
}

// Config holds the tunable knobs an association needs at construction
// time, given concrete defaults below.
type Config struct {
	// MTU bounds outbound packet size.
	MTU uint32

	// MaxReceiveBufferSize is the byte budget shared across every
	// stream's reassembly queue; the receive window is derived as
	// MaxReceiveBufferSize minus the sum of buffered reassembly bytes.
	MaxReceiveBufferSize uint32

	// MaxMessageSize is the configured bound on a single user message
	// before fragmentation. The association does not check it: a message
	// of any length is accepted and fragmented.
	MaxMessageSize uint32

	// RTOInitial is the configured initial RTO. The association does not
	// read it: its RTO manager always starts from timer.RTOInitial.
	RTOInitial time.Duration

	// CookieLifetime bounds how long a server-issued state cookie
	// remains valid for COOKIE-ECHO verification.
	CookieLifetime time.Duration
}

const commonHeaderSize = 12
const dataChunkHeaderSize = 4 + 12 // chunk.HeaderLen + dataFixedLen, duplicated because dataFixedLen is unexported

// DefaultConfig returns the defaults used when a caller doesn't override
// them: a 1200-byte MTU (safe for WebRTC's DTLS-over-UDP path, below the
// typical 1280-byte IPv6 minimum MTU minus encapsulation overhead), a 1MiB
// receive budget, and RFC 6298's 3s initial RTO.
func DefaultConfig() Config {
	return Config{
		MTU:                  1200,
		MaxReceiveBufferSize: 1024 * 1024,
		MaxMessageSize:       65536,
		RTOInitial:           timer.RTOInitial,
		CookieLifetime:       60 * time.Second,
	}
}

// MaxPayloadSize is mtu - common_header - chunk_header: the largest
// DATA-chunk payload one packet can carry without fragmentation.
func (c Config) MaxPayloadSize() uint32 {
	return c.MTU - commonHeaderSize - dataChunkHeaderSize
}

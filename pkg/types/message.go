package types

import "time"

// Message is the domain form of an outbound envelope, before PoW and wire
// encoding.
type Message struct {
	// Destination is the recipient's long-lived public key, hex-encoded.
	Destination string
	Body        []byte
	TTL         time.Duration
	Timestamp   time.Time

	// Ping marks a message that should prefer the direct peer-to-peer path
	// even when the peer isn't already known to be online.
	Ping bool
}

// WireMessage is the post-conversion form ready for PoW and transport.
// Conversion failure is surfaced as errs.MessageConversionFailed.
type WireMessage struct {
	Destination string
	Data        []byte // base64-ready ciphertext
	TTL         int64  // milliseconds
	Timestamp   int64  // unix milliseconds
}

// Peer is a known direct-connect contact for the peer-to-peer send path.
type Peer struct {
	PublicKey string
	Address   string
	Port      int
	Online    bool
}

// Envelope is the opaque, end-to-end encrypted payload yielded by the
// receive path once deduplicated and base64-decoded. Decoding the contents
// further (protobuf envelope unwrap, session/ratchet decrypt) is out of
// scope for this module.
type Envelope struct {
	Hash      string
	Data      []byte
	Timestamp time.Time
}

// IncomingMessage is a single raw entry from a GetMessages response, prior
// to dedup and decode.
type IncomingMessage struct {
	Hash      string `json:"hash"`
	Data      string `json:"data"` // base64
	ExpiresAt int64  `json:"expiration,omitempty"`
}

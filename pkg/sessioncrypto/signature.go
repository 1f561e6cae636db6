package sessioncrypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// signatureVersion is the only Signature.Version this implementation
// produces or accepts.
const signatureVersion = 1

// SignOpenGroupMessage signs (author, text, timestamp) with priv, the
// client-side signature step of posting a message.
func SignOpenGroupMessage(priv ed25519.PrivateKey, author, text string, timestampMillis int64) types.Signature {
	return types.Signature{
		Bytes:   ed25519.Sign(priv, signaturePayload(author, text, timestampMillis)),
		Version: signatureVersion,
	}
}

// VerifyOpenGroupMessage implements types.SignatureVerifier: it derives
// the author's verify key from their hex-encoded public key and checks
// the signature over (author, text, author-stamped timestamp). A message
// failing this check must be discarded on receive.
func VerifyOpenGroupMessage(msg *types.OpenGroupMessage) bool {
	if msg.Signature.Version != signatureVersion || len(msg.Signature.Bytes) != ed25519.SignatureSize {
		return false
	}
	pub, err := deriveVerifyKey(msg.Author)
	if err != nil {
		return false
	}
	payload := signaturePayload(msg.Author, msg.Text, msg.Timestamp.UnixMilli())
	return ed25519.Verify(pub, payload, msg.Signature.Bytes)
}

// deriveVerifyKey turns a hex-encoded author public key into an Ed25519
// verify key, accepting the same 32/33-byte shapes (and 0x05 stripping)
// as a service node or server public key.
func deriveVerifyKey(authorHex string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(authorHex)
	if err != nil {
		return nil, errs.NewParsingFailed(fmt.Errorf("decode author public key: %w", err))
	}
	normalized, err := NormalizeServerPubKey(raw)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(normalized), nil
}

func signaturePayload(author, text string, timestampMillis int64) []byte {
	buf := make([]byte, 0, len(author)+len(text)+8)
	buf = append(buf, author...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestampMillis))
	buf = append(buf, ts[:]...)
	buf = append(buf, text...)
	return buf
}

// Package pow computes the Hashcash-style nonce the network requires for
// message admission: a nonce over
// (recipient, ttl, timestamp, data) such that double-SHA-512 of
// nonce||payload falls under a target derived from the current
// DifficultyState.
package pow

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"math"
	"math/big"

	"github.com/oxen-io/session-network-core/pkg/errs"
)

// nonceCheckInterval is how many hashes pass between checks for context
// cancellation, so a caller can abort a long-running search.
const nonceCheckInterval = 1 << 16

// Input is the payload a nonce is computed over.
type Input struct {
	Recipient  string
	TTLMillis  int64
	Timestamp  int64
	Data       []byte
	Difficulty int
}

// Calculate searches for a nonce satisfying the target derived from
// in.Difficulty and returns it base64-encoded. It fails with
// errs.ProofOfWorkCalculationFailed if ctx is cancelled before a nonce is
// found or if in.Difficulty is not positive.
func Calculate(ctx context.Context, in Input) (string, error) {
	payload := buildPayload(in)
	target, err := computeTarget(in.Difficulty, len(payload))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, 8)
	for n := uint64(0); ; n++ {
		binary.BigEndian.PutUint64(nonce, n)

		h1 := sha512.Sum512(append(nonce, payload...))
		h2 := sha512.Sum512(h1[:])

		if leadingHashAsInt(h2[:8]).Cmp(target) <= 0 {
			return base64.StdEncoding.EncodeToString(nonce), nil
		}

		if n%nonceCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return "", errs.Wrap(errs.KindProofOfWorkCalculationFailed, err)
			}
		}
	}
}

// buildPayload concatenates the fields the nonce is computed over, in the
// fixed order the network verifies against: recipient, ttl, timestamp, data.
func buildPayload(in Input) []byte {
	buf := make([]byte, 0, 16+len(in.Recipient)+len(in.Data))
	var ttlBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(ttlBuf[:], uint64(in.TTLMillis))
	binary.BigEndian.PutUint64(tsBuf[:], uint64(in.Timestamp))
	buf = append(buf, in.Recipient...)
	buf = append(buf, ttlBuf[:]...)
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, in.Data...)
	return buf
}

// computeTarget derives the acceptance threshold from the network
// difficulty and the payload size: higher difficulty or larger payloads
// lower the target, making an acceptable nonce harder to find.
func computeTarget(difficulty, payloadSize int) (*big.Int, error) {
	if difficulty <= 0 {
		return nil, errs.Wrap(errs.KindProofOfWorkCalculationFailed, errInvalidDifficulty)
	}
	maxUint64 := new(big.Int).SetUint64(math.MaxUint64)
	denom := big.NewInt(int64(difficulty) * int64(payloadSize+8))
	if denom.Sign() == 0 {
		return nil, errs.Wrap(errs.KindProofOfWorkCalculationFailed, errInvalidDifficulty)
	}
	return new(big.Int).Div(maxUint64, denom), nil
}

func leadingHashAsInt(b []byte) *big.Int {
	return new(big.Int).SetUint64(binary.BigEndian.Uint64(b))
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errInvalidDifficulty = sentinelErr("difficulty and payload size must be positive")

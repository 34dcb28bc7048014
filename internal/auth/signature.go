// Package auth guards the HTTP entry points: access-token lookup plus the
// signed-request scheme for callers that keep the shared token server-side.
package auth

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strconv"
	"time"

	"wxbridge/internal/apperr"
)

// Signature computes the hex sha1 digest over the sorted concatenation of
// the shared token and the decimal timestamp. Sorting first makes the digest
// independent of argument order.
func Signature(sharedToken string, timestamp int64) string {
	items := []string{sharedToken, strconv.FormatInt(timestamp, 10)}
	sort.Strings(items)
	sum := sha1.Sum([]byte(items[0] + items[1]))
	return hex.EncodeToString(sum[:])
}

type Verifier struct {
	skew time.Duration
	now  func() time.Time
}

func NewVerifier(skew time.Duration) *Verifier {
	return &Verifier{skew: skew, now: time.Now}
}

// Verify checks timestamp freshness before the digest: a stale request is
// rejected regardless of signature correctness.
func (v *Verifier) Verify(sharedToken string, timestamp int64, signature string) error {
	now := v.now().Unix()
	diff := now - timestamp
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Second > v.skew {
		return apperr.ErrStaleTimestamp
	}
	want := Signature(sharedToken, timestamp)
	if subtle.ConstantTimeCompare([]byte(want), []byte(signature)) != 1 {
		return apperr.ErrBadSignature
	}
	return nil
}

// Package secret hashes app secrets with argon2id. Apps authenticate with a
// raw secret on every token issuance and signed request; the stored form is
// hash+salt+params so the policy can change without invalidating credentials.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
)

var ErrEmptySecret = errors.New("secret: empty secret")

type Params struct {
	// Stored alongside the hash so verification uses the original cost.
	Time    uint32 `json:"t"`
	Memory  uint32 `json:"m"` // KiB
	Threads uint8  `json:"p"`
	KeyLen  uint32 `json:"k"`
	SaltLen uint32 `json:"s"`
}

type Hasher struct {
	cur  Params
	algo string
}

func NewArgon2id() *Hasher {
	return &Hasher{
		algo: "argon2id",
		cur: Params{
			Time:    3,
			Memory:  64 * 1024,
			Threads: 1,
			KeyLen:  32,
			SaltLen: 16,
		},
	}
}

func (h *Hasher) Algo() string { return h.algo }

func (h *Hasher) Hash(secret string) (hash, salt, paramsJSON []byte, err error) {
	if secret == "" {
		return nil, nil, nil, ErrEmptySecret
	}
	salt = make([]byte, h.cur.SaltLen)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, err
	}
	hash = argon2.IDKey([]byte(secret), salt, h.cur.Time, h.cur.Memory, h.cur.Threads, h.cur.KeyLen)
	paramsJSON, err = json.Marshal(h.cur)
	if err != nil {
		return nil, nil, nil, err
	}
	return hash, salt, paramsJSON, nil
}

func (h *Hasher) Verify(secret, algo string, hash, salt, paramsJSON []byte) bool {
	if algo != h.algo {
		return false
	}
	var stored Params
	if err := json.Unmarshal(paramsJSON, &stored); err != nil {
		return false
	}
	calculated := argon2.IDKey([]byte(secret), salt, stored.Time, stored.Memory, stored.Threads, stored.KeyLen)
	return subtle.ConstantTimeCompare(calculated, hash) == 1
}

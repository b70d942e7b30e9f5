package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

type Digest struct {
	hash hash.Hash
}

func New(hash hash.Hash) *Digest {
	return &Digest{
		hash: hash,
	}
}

func (d *Digest) Write(args ...[]byte) error {
	for _, arg := range args {
		_, err := d.hash.Write(arg)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Digest) Hex() string {
	return hex.EncodeToString(d.hash.Sum(nil))
}

// Lookup computes the canonical lookup hash for a sensitive value.
// Values are trimmed and lower-cased first so that equality lookups
// survive cosmetic differences in the stored plaintext.
func Lookup(value string) string {
	d := New(sha256.New())
	_ = d.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return d.Hex()
}

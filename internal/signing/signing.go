// Package signing produces the keyed HMAC over a diagnosis key set that the
// verification server uses to certify a submission without seeing the keys.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pathcheck/enclient/internal/keys"
)

const secretKeyLength = 32

// Signer computes HMAC-SHA256 signatures over canonicalized key sets. The
// entropy source is injectable so the determinism of everything after key
// generation stays testable; production callers use New.
type Signer struct {
	entropy io.Reader
}

// New returns a Signer drawing secret keys from crypto/rand.
func New() *Signer {
	return &Signer{entropy: rand.Reader}
}

// NewWithEntropy returns a Signer drawing secret keys from the given reader.
func NewWithEntropy(entropy io.Reader) *Signer {
	return &Signer{entropy: entropy}
}

// CalculateHmac serializes the key set into its canonical form, signs it
// with a fresh random 32-byte secret, and returns the base64-encoded
// signature and secret. The server recomputes the same canonical form, so
// serialization and ordering must match it bit for bit. The secret must
// never be logged; it travels only in the publish request body.
func (s *Signer) CalculateHmac(exposureKeys []keys.ExposureKey) (signature string, hmacKey string, err error) {
	message := SerializeKeys(exposureKeys)

	secret := make([]byte, secretKeyLength)
	if _, err := io.ReadFull(s.entropy, secret); err != nil {
		return "", "", fmt.Errorf("generate hmac key: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		base64.StdEncoding.EncodeToString(secret),
		nil
}

// SerializeKeys produces the canonical message for a key set: each key as
// "{key}.{rollingStartNumber}.{rollingPeriod}.{transmissionRisk}", the
// serialized strings sorted lexicographically (plain byte comparison, not by
// original key order), joined with commas and no trailing separator.
func SerializeKeys(exposureKeys []keys.ExposureKey) string {
	serialized := make([]string, 0, len(exposureKeys))
	for _, key := range exposureKeys {
		serialized = append(serialized, serializeKey(key))
	}
	sort.Strings(serialized)
	return strings.Join(serialized, ",")
}

func serializeKey(key keys.ExposureKey) string {
	return fmt.Sprintf("%s.%d.%d.%d",
		key.Key, key.RollingStartNumber, key.RollingPeriod, key.TransmissionRisk)
}

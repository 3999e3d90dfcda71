package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"
)

// Delimiter joins signal components before hashing.
const Delimiter = "|"

// Length is the number of hex characters in a fingerprint.
const Length = 16

var formatRe = regexp.MustCompile(`^[0-9a-f]{16}$`)

// ErrHasherUnavailable is returned by a Hasher that cannot run on this host.
var ErrHasherUnavailable = errors.New("hasher unavailable")

// Hasher turns the joined component string into a fingerprint.
type Hasher interface {
	Sum(payload string) (string, error)
}

// SHA256Hasher is the normal-mode digest: first 16 hex chars of SHA-256.
type SHA256Hasher struct{}

// Sum implements Hasher.
func (SHA256Hasher) Sum(payload string) (string, error) {
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])[:Length], nil
}

// ChecksumHasher is the degraded mode: a rolling 32-bit checksum over UTF-16
// code units. Collision resistance is weak; output keeps the 16 hex format.
type ChecksumHasher struct{}

// Sum implements Hasher. It never fails.
func (ChecksumHasher) Sum(payload string) (string, error) {
	var h int32
	for _, c := range utf16.Encode([]rune(payload)) {
		h = (h << 5) - h + int32(c)
	}
	return fmt.Sprintf("%016x", uint32(h)), nil
}

// Result is a derived fingerprint plus whether degraded mode produced it.
type Result struct {
	Fingerprint string `json:"fingerprint"`
	Degraded    bool   `json:"degraded"`
}

// Deriver computes fingerprints with a primary hasher and the checksum
// fallback, so derivation always yields a value.
type Deriver struct {
	primary  Hasher
	fallback Hasher
}

// NewDeriver builds a Deriver. A nil primary selects SHA256Hasher.
func NewDeriver(primary Hasher) *Deriver {
	if primary == nil {
		primary = SHA256Hasher{}
	}
	return &Deriver{primary: primary, fallback: ChecksumHasher{}}
}

// Derive is a pure function of the signal bundle.
func (d *Deriver) Derive(s Signals) Result {
	payload := strings.Join(s.Components(), Delimiter)
	if fp, err := d.primary.Sum(payload); err == nil && ValidFormat(fp) {
		return Result{Fingerprint: fp}
	}
	fp, _ := d.fallback.Sum(payload)
	return Result{Fingerprint: fp, Degraded: true}
}

var defaultDeriver = NewDeriver(nil)

// Derive computes the normal-mode fingerprint for s.
func Derive(s Signals) string {
	return defaultDeriver.Derive(s).Fingerprint
}

// ValidFormat reports whether fp is 16 lowercase hex characters.
func ValidFormat(fp string) bool {
	return formatRe.MatchString(fp)
}

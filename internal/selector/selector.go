// Package selector defines the fixed-width operation identifiers routed by
// the diamond. A selector is the first four bytes of the keccak256 hash of a
// function signature, so identifiers computed here match the ones produced by
// Solidity tooling for the same signature.
package selector

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Size is the width of a selector in bytes.
const Size = 4

// ErrInvalid is returned when a selector string cannot be decoded.
var ErrInvalid = errors.New("selector: invalid selector")

// Selector names one externally invocable operation.
type Selector [Size]byte

// FromSignature derives the selector for a canonical function signature,
// e.g. "transfer(address,uint256)".
func FromSignature(signature string) Selector {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(strings.TrimSpace(signature)))
	var s Selector
	copy(s[:], h.Sum(nil))
	return s
}

// FromBytes copies the first Size bytes of b into a selector.
func FromBytes(b []byte) (Selector, error) {
	var s Selector
	if len(b) < Size {
		return s, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalid, Size, len(b))
	}
	copy(s[:], b[:Size])
	return s, nil
}

// Parse decodes an 8 digit hex selector with an optional 0x prefix.
func Parse(s string) (Selector, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw) != Size*2 {
		return Selector{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Selector{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromBytes(b)
}

// MustParse is Parse that panics. Intended for constants and tests.
func MustParse(s string) Selector {
	sel, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// String renders the selector as 0x-prefixed hex.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Bytes returns a copy of the selector bytes.
func (s Selector) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, s[:])
	return b
}

// IsZero reports whether s is the all-zero selector.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DuplicateError reports a selector listed twice in one group.
type DuplicateError struct {
	Selector Selector
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("selector %s listed more than once", e.Selector)
}

// Unique returns a DuplicateError for the first repeated selector in sels.
func Unique(sels []Selector) error {
	seen := make(map[Selector]struct{}, len(sels))
	for _, s := range sels {
		if _, ok := seen[s]; ok {
			return DuplicateError{Selector: s}
		}
		seen[s] = struct{}{}
	}
	return nil
}

// FromSignatures derives selectors for each signature, preserving order.
func FromSignatures(signatures ...string) []Selector {
	out := make([]Selector, len(signatures))
	for i, sig := range signatures {
		out[i] = FromSignature(sig)
	}
	return out
}

// Sort orders selectors by their byte value.
func Sort(sels []Selector) {
	sort.Slice(sels, func(i, j int) bool {
		return string(sels[i][:]) < string(sels[j][:])
	})
}

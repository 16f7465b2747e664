// Package sessionid generates identifiers for game sessions.
//
// IDs are TypeID-style strings: a "game_" prefix followed by a UUIDv7
// encoded as 26 characters of Crockford base32. They sort by creation time,
// which keeps persisted results and log lines in chronological order.
package sessionid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix is prepended to every session ID
const Prefix = "game_"

// Crockford's base32 alphabet, lower case as used by TypeID
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// New returns a fresh, time-sortable session ID
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system random source fails
		id = uuid.New()
	}
	return Prefix + encode(id)
}

// encode writes the 128 UUID bits as 26 base32 characters, with two zero
// padding bits in front so the first character is always 0-7.
func encode(id uuid.UUID) string {
	var out [26]byte
	for i := range out {
		var v byte
		for b := 0; b < 5; b++ {
			bit := i*5 + b - 2
			v <<= 1
			if bit >= 0 && id[bit/8]&(0x80>>(bit%8)) != 0 {
				v |= 1
			}
		}
		out[i] = alphabet[v]
	}
	return string(out[:])
}

// Validate checks that id has the session prefix and a well formed suffix
func Validate(id string) error {
	suffix, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return fmt.Errorf("session ID must start with %q", Prefix)
	}
	if len(suffix) != 26 {
		return fmt.Errorf("session ID suffix must be exactly 26 characters, got %d", len(suffix))
	}
	if suffix[0] > '7' {
		return fmt.Errorf("session ID first character must be 0-7, got %c", suffix[0])
	}
	for i, char := range suffix {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}

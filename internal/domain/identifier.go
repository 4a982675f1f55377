package domain

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IDLen is the size of a canonical binary identifier.
const IDLen = 16

// ID is a canonical identifier. Historically records were written with
// either a binary id or its hex text rendering, depending on the engine
// version that created them; ID carries the binary form and renders the
// hex form on demand so lookups can always try both.
type ID [IDLen]byte

// NewID generates a random identifier.
func NewID() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("generating id: %w", err)
	}
	return id, nil
}

// ParseID normalizes any supported identifier representation: an ID, a
// 16-byte binary value, or a 32-character hex string. Anything else fails
// with MalformedIdentifierError.
func ParseID(v any) (ID, error) {
	switch val := v.(type) {
	case ID:
		return val, nil
	case [IDLen]byte:
		return ID(val), nil
	case []byte:
		if len(val) == IDLen {
			var id ID
			copy(id[:], val)
			return id, nil
		}
		// Legacy writers sometimes stored the hex text as raw bytes.
		return parseHex(string(val))
	case string:
		return parseHex(val)
	default:
		return ID{}, &MalformedIdentifierError{Value: fmt.Sprintf("%v", v)}
	}
}

func parseHex(s string) (ID, error) {
	if len(s) != IDLen*2 {
		return ID{}, &MalformedIdentifierError{Value: s}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, &MalformedIdentifierError{Value: s}
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// Bytes returns the canonical binary form, used for store-native queries
// and for all new writes.
func (id ID) Bytes() []byte {
	out := make([]byte, IDLen)
	copy(out, id[:])
	return out
}

// Hex returns the canonical lowercase hex form, used for cross-reference
// fields and for matching legacy rows stored as text.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return bytes.Equal(id[:], make([]byte, IDLen))
}

func (id ID) String() string {
	return id.Hex()
}

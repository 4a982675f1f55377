package domain_test

import (
	"errors"
	"testing"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

func TestParseID_HexRoundTrip(t *testing.T) {
	id, err := domain.NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}

	parsed, err := domain.ParseID(id.Hex())
	if err != nil {
		t.Fatalf("ParseID(hex) failed: %v", err)
	}
	if parsed != id {
		t.Errorf("ParseID(%q) = %v, want %v", id.Hex(), parsed, id)
	}
}

func TestParseID_BinaryForm(t *testing.T) {
	id, err := domain.NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}

	parsed, err := domain.ParseID(id.Bytes())
	if err != nil {
		t.Fatalf("ParseID(bytes) failed: %v", err)
	}
	if parsed != id {
		t.Errorf("ParseID(bytes) = %v, want %v", parsed, id)
	}
}

func TestParseID_HexStoredAsBytes(t *testing.T) {
	// Legacy rows sometimes hold the hex text in a binary column.
	id, err := domain.NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}

	parsed, err := domain.ParseID([]byte(id.Hex()))
	if err != nil {
		t.Fatalf("ParseID(hex bytes) failed: %v", err)
	}
	if parsed != id {
		t.Errorf("ParseID(hex bytes) = %v, want %v", parsed, id)
	}
}

func TestParseID_Malformed(t *testing.T) {
	cases := []any{
		"not-hex",
		"abc123",                             // too short
		"zz000000000000000000000000000000",   // right length, not hex
		[]byte{0x01, 0x02},                   // wrong binary length
		42,                                   // unsupported type
	}

	for _, input := range cases {
		_, err := domain.ParseID(input)
		var malformed *domain.MalformedIdentifierError
		if !errors.As(err, &malformed) {
			t.Errorf("ParseID(%v): expected MalformedIdentifierError, got %v", input, err)
		}
	}
}

func TestID_IsZero(t *testing.T) {
	var zero domain.ID
	if !zero.IsZero() {
		t.Error("zero ID should report IsZero")
	}

	id, _ := domain.NewID()
	if id.IsZero() {
		t.Error("random ID should not report IsZero")
	}
}

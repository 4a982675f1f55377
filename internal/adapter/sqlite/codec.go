package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

// idArgs returns both canonical forms of an identifier for use with an
// `id IN (?, ?)` predicate. Rows written by this engine hold the binary
// form; rows migrated from older deployments may hold the hex text. A
// lookup that tried only one form would silently miss the other.
func idArgs(id domain.ID) (any, any) {
	return id.Bytes(), id.Hex()
}

// scanID decodes an identifier column that may hold either form.
func scanID(raw []byte) (domain.ID, error) {
	id, err := domain.ParseID(raw)
	if err != nil {
		return domain.ID{}, fmt.Errorf("decoding stored id: %w", err)
	}
	return id, nil
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json column: %w", err)
	}
	return string(raw), nil
}

func unmarshalJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding json column: %w", err)
	}
	return nil
}

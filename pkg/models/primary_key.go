package models

import (
	"fmt"

	"github.com/google/uuid"
)

// PKKind classifies a record primary key as either an integer ID or a UUID.
type PKKind string

const (
	PKKindID   PKKind = "id"
	PKKindUUID PKKind = "uuid"
)

// ClassifyPK returns PKKindUUID when the value parses as an RFC-4122 UUID
// (case-insensitive hex with standard dashes), PKKindID otherwise. Every join
// insertion and lookup selects its id/uuid column pair through this function.
func ClassifyPK(value string) PKKind {
	if _, err := uuid.Parse(value); err == nil {
		return PKKindUUID
	}
	return PKKindID
}

// StringifyPK normalizes a primary key value pulled out of a decoded JSON
// payload. Numeric values arrive as float64 and are rendered without a
// fractional part so integer IDs round-trip cleanly.
func StringifyPK(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

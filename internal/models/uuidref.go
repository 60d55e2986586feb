package models

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDRef is a nullable foreign-key column holding a UUID string. Legacy
// rows carry empty strings, literal "null"/"0" markers and truncated
// identifiers in these columns, so the value is sanitized once at the
// database boundary: anything that does not parse as a non-zero UUID
// normalizes to the absent value on both scan and save.
type UUIDRef string

// SanitizeUUID normalizes a raw identifier to a UUIDRef, mapping malformed
// or zero-valued input to the absent value.
func SanitizeUUID(raw string) UUIDRef {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	switch strings.ToLower(trimmed) {
	case "null", "nil", "0", "undefined":
		return ""
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil || parsed == uuid.Nil {
		return ""
	}
	return UUIDRef(strings.ToLower(trimmed))
}

// Valid reports whether the reference holds a value.
func (u UUIDRef) Valid() bool {
	return u != ""
}

// String returns the underlying identifier, empty when absent.
func (u UUIDRef) String() string {
	return string(u)
}

// Ptr returns the identifier as a *string, nil when absent.
func (u UUIDRef) Ptr() *string {
	if u == "" {
		return nil
	}
	s := string(u)
	return &s
}

// Scan implements sql.Scanner, sanitizing on the way in.
func (u *UUIDRef) Scan(src interface{}) error {
	if src == nil {
		*u = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*u = SanitizeUUID(v)
	case []byte:
		*u = SanitizeUUID(string(v))
	default:
		return fmt.Errorf("uuidref: unsupported scan type %T", src)
	}
	return nil
}

// Value implements driver.Valuer, storing NULL for the absent value.
func (u UUIDRef) Value() (driver.Value, error) {
	clean := SanitizeUUID(string(u))
	if clean == "" {
		return nil, nil
	}
	return string(clean), nil
}

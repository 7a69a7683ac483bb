// Package idgen generates and parses the opaque 128-bit identifiers used
// throughout VerSafe for users, documents, signatures, and the other
// entities in internal/store/model.
package idgen

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
)

// ID is an opaque 128-bit identifier, stored and compared as a fixed-size
// array so it has value semantics (usable as a map key, comparable with ==).
type ID [16]byte

// Nil is the zero ID, never assigned to a real entity.
var Nil ID

// New returns a fresh random ID sourced from crypto/rand.
func New() ID {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand failing is fatal for process correctness elsewhere too;
		// panicking here matches the rest of the core's "never hand out a
		// zero ID silently" stance.
		panic(fmt.Sprintf("idgen: crypto/rand unavailable: %v", err))
	}
	return id
}

// String renders the ID as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == Nil
}

// Parse decodes a hex-encoded ID previously produced by String.
func Parse(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("idgen: invalid id length %q: want %d bytes got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as plain
// hex strings in JSON request/response bodies.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements database/sql/driver.Valuer, storing the ID as its raw
// 16 bytes (a bytea column in the Postgres schema).
func (id ID) Value() (driver.Value, error) {
	if id.IsNil() {
		return nil, nil
	}
	return id[:], nil
}

// Scan implements sql.Scanner for reading the bytea column back.
func (id *ID) Scan(src interface{}) error {
	if src == nil {
		*id = Nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.New("idgen: Scan source is not []byte")
	}
	if len(b) != len(*id) {
		return fmt.Errorf("idgen: Scan source has %d bytes, want %d", len(b), len(*id))
	}
	copy(id[:], b)
	return nil
}

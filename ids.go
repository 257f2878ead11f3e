package auth

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID identifies every persisted entity. It is a UUID value type, usable
// as a map key, stored in its canonical string form.
type ID uuid.UUID

// NilID is the all-zero identifier.
var NilID = ID(uuid.Nil)

// NewID returns a fresh random (v4) identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical textual form of an identifier.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return NilID, withSource(ErrParseUUID, err, map[string]any{"value": s})
	}
	return ID(u), nil
}

// MustParseID is ParseID for literals known to be valid.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) UUID() uuid.UUID { return uuid.UUID(id) }

func (id ID) String() string { return uuid.UUID(id).String() }

func (id ID) IsNil() bool { return id == NilID }

// Value implements driver.Valuer.
func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements sql.Scanner. Drivers hand back either the textual form
// or, for native uuid columns, the 16 raw bytes.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = NilID
		return nil
	case string:
		return id.scanString(v)
	case []byte:
		if len(v) == 16 {
			u, err := uuid.FromBytes(v)
			if err != nil {
				return err
			}
			*id = ID(u)
			return nil
		}
		return id.scanString(string(v))
	case [16]byte:
		*id = ID(v)
		return nil
	default:
		return fmt.Errorf("auth: cannot scan %T into ID", src)
	}
}

func (id *ID) scanString(s string) error {
	if s == "" {
		*id = NilID
		return nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*id = ID(u)
	return nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Package id provides type-safe opaque identifiers for engine entities.
// Every entity in the workspace graph (§3 of the specification) is
// addressed by an ID carrying a typed prefix, e.g. "nd_3f2a..." for a node
// or "ws_9c10..." for a workspace. This consolidates prefix validation and
// generation in one leaf package with zero dependencies beyond stdlib and
// google/uuid.
package id

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies the entity family an ID belongs to, encoded as its prefix.
type Kind string

// Entity kinds and their ID prefixes, per spec.md §3's entity catalogue.
const (
	KindServer      Kind = "srv"
	KindAccount     Kind = "acc"
	KindWorkspace   Kind = "ws"
	KindNode        Kind = "nd"
	KindDocument    Kind = "doc"
	KindMutation    Kind = "mut"
	KindTombstone   Kind = "tmb"
	KindCursor      Kind = "cur"
	KindSubscriber  Kind = "sub"
	KindUploadSess  Kind = "ups"
	KindCollaborate Kind = "col"
)

var validKinds = map[Kind]bool{
	KindServer: true, KindAccount: true, KindWorkspace: true, KindNode: true,
	KindDocument: true, KindMutation: true, KindTombstone: true, KindCursor: true,
	KindSubscriber: true, KindUploadSess: true, KindCollaborate: true,
}

// ID is an opaque, typed-prefix identifier: "<kind>_<random>".
// The zero value (ID{}) represents an absent ID.
type ID struct {
	value string
}

// New generates a fresh random ID of the given kind.
func New(k Kind) ID {
	return ID{value: string(k) + "_" + uuid.NewString()}
}

// Parse validates and wraps a raw identifier string, checking that its
// prefix names a known Kind.
func Parse(raw string) (ID, error) {
	if raw == "" {
		return ID{}, nil
	}

	k, _, ok := splitPrefix(raw)
	if !ok || !validKinds[k] {
		return ID{}, fmt.Errorf("id: %q has no recognized kind prefix", raw)
	}

	return ID{value: raw}, nil
}

// MustParse is Parse but panics on error; for use with literals in tests.
func MustParse(raw string) ID {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return v
}

func splitPrefix(raw string) (Kind, string, bool) {
	idx := strings.IndexByte(raw, '_')
	if idx <= 0 {
		return "", "", false
	}

	return Kind(raw[:idx]), raw[idx+1:], true
}

// Kind returns the entity kind encoded in this ID's prefix, or "" for a
// zero ID or one with no recognizable prefix.
func (i ID) Kind() Kind {
	k, _, ok := splitPrefix(i.value)
	if !ok {
		return ""
	}

	return k
}

// String returns the raw identifier string.
func (i ID) String() string {
	return i.value
}

// IsZero reports whether this is the absent/unset ID.
func (i ID) IsZero() bool {
	return i.value == ""
}

// Equal reports whether two IDs are identical.
func (i ID) Equal(other ID) bool {
	return i.value == other.value
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}

	*i = v

	return nil
}

// Scan implements sql.Scanner for reading IDs from SQLite columns.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = ID{}
		return nil
	}

	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}

		*i = parsed

		return nil
	case []byte:
		return i.Scan(string(v))
	default:
		return fmt.Errorf("id.ID.Scan: unsupported type %T", src)
	}
}

// Value implements driver.Valuer for writing IDs to SQLite. The zero ID
// writes SQL NULL.
func (i ID) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}

	return i.value, nil
}

// Compile-time interface assertions.
var (
	_ encoding.TextMarshaler   = ID{}
	_ encoding.TextUnmarshaler = (*ID)(nil)
	_ fmt.Stringer             = ID{}
	_ driver.Valuer            = ID{}
	_ sql.Scanner              = (*ID)(nil)
)

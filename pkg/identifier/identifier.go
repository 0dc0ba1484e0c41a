// Package identifier provides interned symbolic names used as keys for
// properties, message types, ports and processors.
package identifier

import (
	"slices"
	"strings"
	"unique"
)

// Identifier is an interned name. Two identifiers built from the same text
// are equal under ==, and comparing them costs a pointer comparison.
// The zero value is the empty identifier.
type Identifier struct {
	h unique.Handle[string]
}

// All is the broadcast destination for messages.
var All = Intern("all")

// Intern returns the identifier for text. It is safe for concurrent use.
func Intern(text string) Identifier {
	if text == "" {
		return Identifier{}
	}
	return Identifier{h: unique.Make(text)}
}

// String returns the identifier text.
func (id Identifier) String() string {
	if id.IsZero() {
		return ""
	}
	return id.h.Value()
}

// IsZero reports whether id is the empty identifier.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// Compare orders identifiers by their text.
func Compare(a, b Identifier) int {
	if a == b {
		return 0
	}
	return strings.Compare(a.String(), b.String())
}

// Sort sorts ids in place by text.
func Sort(ids []Identifier) {
	slices.SortFunc(ids, Compare)
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	*id = Intern(string(text))
	return nil
}

/*
Package script implements the text form of a rule store: a replayable
sequence of operations that rebuilds the store from a known-empty state.

# Grammar

The format is line oriented. Blank lines and lines starting with '#' are
ignored. Four operations exist:

	select-target <label>
	delete-all
	store-rule --aid <hex|""> --device-app-id <hex|"">
	           [--pkg-ref <package-name>]
	           (--apdu-never|--apdu-always|--apdu-filter <hex>...)
	           (--nfc-never|--nfc-always)
	           [--android-permissions <16-hex-digit>]
	read-all

Byte-sequence fields are hex encoded; the two-character token "" denotes
the empty (wildcard) value. read-all is side-effect free and only marks a
verification snapshot point.

An exported script always starts with select-target and delete-all, so
replaying it against any store yields exactly the exported rules.
*/
package script

import (
	"fmt"

	"github.com/cardforge/aram/pkg/seac"
)

// Op is one script operation. Line is the 1-based source line, zero for
// ops built programmatically.
type Op interface {
	Line() int
	fmt.Stringer
}

type lineInfo int

func (l lineInfo) Line() int { return int(l) }

// SelectTarget directs subsequent operations at the named applet.
type SelectTarget struct {
	lineInfo
	Label string
}

func (o SelectTarget) String() string { return "select-target " + o.Label }

// DeleteAll clears the rule store.
type DeleteAll struct {
	lineInfo
}

func (o DeleteAll) String() string { return "delete-all" }

// StoreRule inserts (or replaces) one access rule.
type StoreRule struct {
	lineInfo
	Rule seac.Rule
}

func (o StoreRule) String() string { return formatStoreRule(o.Rule) }

// ReadAll marks a verification snapshot point. It mutates nothing.
type ReadAll struct {
	lineInfo
}

func (o ReadAll) String() string { return "read-all" }

// UnsupportedOperationError reports a script line whose operation is
// outside the grammar.
type UnsupportedOperationError struct {
	SourceLine int
	Name       string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("line %d: unsupported operation %q", e.SourceLine, e.Name)
}

// MalformedFieldError reports a field encoding the grammar rejects.
type MalformedFieldError struct {
	SourceLine int
	Field      string
	Reason     string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("line %d: malformed field %s: %s", e.SourceLine, e.Field, e.Reason)
}

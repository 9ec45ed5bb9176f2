package seac

import (
	"errors"
	"fmt"

	"github.com/cardforge/aram/pkg/tlv"
)

// MalformedStoreError reports canonical store data that cannot be split
// into complete REF-AR-DO records. Offset is the byte position of the
// offending element; Index the zero-based record position.
type MalformedStoreError struct {
	Offset int
	Index  int
	Err    error
}

func (e *MalformedStoreError) Error() string {
	return fmt.Sprintf("malformed rule store data at record %d (offset %d): %v", e.Index, e.Offset, e.Err)
}

func (e *MalformedStoreError) Unwrap() error {
	return e.Err
}

// MarshalStore serializes the store to its canonical binary form: the
// concatenation of each rule's REF-AR-DO encoding in store order. This is
// the byte sequence exchanged with the applet.
func MarshalStore(s *Store) ([]byte, error) {
	var out []byte
	for i, r := range s.Rules() {
		enc, err := r.ToTLV()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, enc...)
	}
	return out, nil
}

// UnmarshalStore rebuilds a store from its canonical binary form,
// decoding REF-AR-DO records until the input is exhausted.
func UnmarshalStore(data []byte) (*Store, error) {
	elems, err := tlv.Decode(data)
	if err != nil {
		var malformed *tlv.MalformedError
		if errors.As(err, &malformed) {
			return nil, &MalformedStoreError{Offset: malformed.Offset, Err: err}
		}
		return nil, &MalformedStoreError{Err: err}
	}

	store := NewStore()
	offset := 0

	for index, e := range elems {
		if e.Tag != TagRefAccessRule {
			return nil, &MalformedStoreError{
				Offset: offset,
				Index:  index,
				Err:    fmt.Errorf("unexpected top-level tag '%s', want REF-AR-DO '%s'", e.Tag, TagRefAccessRule),
			}
		}

		rule, err := ruleFromBody(e.Value)
		if err != nil {
			return nil, &MalformedStoreError{Offset: offset, Index: index, Err: err}
		}
		if err := store.InsertOrReplace(rule); err != nil {
			return nil, &MalformedStoreError{Offset: offset, Index: index, Err: err}
		}

		// The codec only emits canonical lengths, so re-encoding the
		// element reproduces its wire size.
		offset += len(tlv.Encode(e.Tag, e.Value))
	}

	return store, nil
}

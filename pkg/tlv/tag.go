package tlv

import (
	"fmt"

	"github.com/cardforge/aram/pkg/bits"
)

// Tag is a BER tag of one or two octets. Two-octet tags (first octet with
// all five low bits set, e.g. 'FF40' or 'DF20') are stored with the
// leading octet in the high byte.
type Tag uint16

// Bytes returns the wire representation of the tag.
func (t Tag) Bytes() []byte {
	if t > 0xFF {
		return []byte{byte(t >> 8), byte(t)}
	}
	return []byte{byte(t)}
}

// leading returns the octet carrying the class and constructed bits.
func (t Tag) leading() byte {
	if t > 0xFF {
		return byte(t >> 8)
	}
	return byte(t)
}

// IsConstructed reports whether the tag announces a constructed value,
// i.e. a value that is itself a sequence of TLV elements.
func (t Tag) IsConstructed() bool {
	return bits.IsSet(t.leading(), 6)
}

// TagClass identifies the BER tag class encoded in bits 8-7 of the
// leading tag octet.
type TagClass byte

const (
	ClassUniversal TagClass = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

func (c TagClass) String() string {
	switch c {
	case ClassUniversal:
		return "Universal"
	case ClassApplication:
		return "Application"
	case ClassContextSpecific:
		return "Context-Specific"
	case ClassPrivate:
		return "Private"
	default:
		return fmt.Sprintf("Unknown Class (%d)", byte(c))
	}
}

// Class returns the tag's BER class.
func (t Tag) Class() TagClass {
	return TagClass(bits.GetRange(t.leading(), 8, 7))
}

func (t Tag) String() string {
	if t > 0xFF {
		return fmt.Sprintf("%04X", uint16(t))
	}
	return fmt.Sprintf("%02X", uint16(t))
}

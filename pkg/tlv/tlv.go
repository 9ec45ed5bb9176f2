// Package tlv implements a single-level BER-TLV (Basic Encoding Rules
// Tag-Length-Value) codec for the data objects exchanged with secure
// element applets.
//
// The codec is deliberately single-level: Decode returns the raw value
// octets of each top-level element, and callers descend into constructed
// values by calling Decode again on the value. This keeps the byte layout
// fully under the caller's control, which matters because access-control
// data must round-trip bit-for-bit through export and re-import.
//
// Length octets are always emitted in their minimal (canonical) form and
// non-canonical encodings are rejected on decode, so Encode(Decode(x))
// reproduces x for every input the codec accepts.
package tlv

import (
	"bytes"
	"fmt"

	"github.com/cardforge/aram/pkg/bits"
)

// BER length encoding limits.
const (
	// MaxShortLength is the largest value length encodable in a single
	// length octet (short form).
	MaxShortLength = 0x7F

	// MaxLength is the largest value length the codec accepts. Two
	// length octets after the 0x82 prefix cover every data object the
	// Secure Element Access Control specification defines.
	MaxLength = 0xFFFF
)

// TLV is one decoded top-level element. Value holds the raw value octets;
// for constructed tags it contains the encoded child elements.
type TLV struct {
	Tag   Tag
	Value []byte
}

// MalformedError reports a structural violation in TLV input.
// Offset is the byte position at which decoding failed.
type MalformedError struct {
	Offset int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed TLV at offset %d: %s", e.Offset, e.Reason)
}

// Encode produces tag octets, minimal BER length octets and the value.
// It panics when the value exceeds MaxLength: no data object of the
// access-control interface comes close to that limit, so an oversized
// value is a programming error, not an input condition.
func Encode(tag Tag, value []byte) []byte {
	if len(value) > MaxLength {
		panic(fmt.Sprintf("tlv: value of %d bytes exceeds maximum length %d", len(value), MaxLength))
	}

	buf := new(bytes.Buffer)
	buf.Write(tag.Bytes())
	writeLength(buf, len(value))
	buf.Write(value)
	return buf.Bytes()
}

// EncodeAll concatenates the encodings of a sequence of elements.
func EncodeAll(elems []TLV) []byte {
	buf := new(bytes.Buffer)
	for _, e := range elems {
		buf.Write(Encode(e.Tag, e.Value))
	}
	return buf.Bytes()
}

func writeLength(buf *bytes.Buffer, n int) {
	switch {
	case n <= MaxShortLength:
		buf.WriteByte(byte(n))
	case n <= 0xFF:
		buf.WriteByte(0x81)
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(0x82)
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	}
}

// Decode parses zero or more top-level TLV elements.
// It fails with *MalformedError on truncated tag or length fields, a
// length exceeding the remaining buffer, or a non-canonical length
// encoding.
func Decode(data []byte) ([]TLV, error) {
	var elems []TLV
	offset := 0

	for offset < len(data) {
		tag, n, err := decodeTag(data, offset)
		if err != nil {
			return nil, err
		}
		offset += n

		length, n, err := decodeLength(data, offset)
		if err != nil {
			return nil, err
		}
		offset += n

		if length > len(data)-offset {
			return nil, &MalformedError{
				Offset: offset,
				Reason: fmt.Sprintf("value length %d exceeds remaining %d bytes", length, len(data)-offset),
			}
		}

		elems = append(elems, TLV{Tag: tag, Value: data[offset : offset+length]})
		offset += length
	}

	return elems, nil
}

func decodeTag(data []byte, offset int) (Tag, int, error) {
	first := data[offset]

	// Low five bits all set announce a subsequent tag octet.
	if first&0x1F != 0x1F {
		return Tag(first), 1, nil
	}

	if offset+1 >= len(data) {
		return 0, 0, &MalformedError{Offset: offset, Reason: "truncated two-byte tag"}
	}

	second := data[offset+1]
	// A set high bit in the second octet would announce a third one;
	// no Access Control data object needs tags that long.
	if bits.IsSet(second, 8) {
		return 0, 0, &MalformedError{Offset: offset, Reason: "tags longer than two bytes are not supported"}
	}

	return Tag(uint16(first)<<8 | uint16(second)), 2, nil
}

func decodeLength(data []byte, offset int) (int, int, error) {
	if offset >= len(data) {
		return 0, 0, &MalformedError{Offset: offset, Reason: "missing length field"}
	}

	first := data[offset]
	if first <= MaxShortLength {
		return int(first), 1, nil
	}

	switch first {
	case 0x81:
		if offset+1 >= len(data) {
			return 0, 0, &MalformedError{Offset: offset, Reason: "truncated 81-form length"}
		}
		length := int(data[offset+1])
		if length <= MaxShortLength {
			return 0, 0, &MalformedError{Offset: offset, Reason: "non-canonical 81-form length"}
		}
		return length, 2, nil

	case 0x82:
		if offset+2 >= len(data) {
			return 0, 0, &MalformedError{Offset: offset, Reason: "truncated 82-form length"}
		}
		length := int(data[offset+1])<<8 | int(data[offset+2])
		if length <= 0xFF {
			return 0, 0, &MalformedError{Offset: offset, Reason: "non-canonical 82-form length"}
		}
		return length, 3, nil

	default:
		// 0x80 (indefinite) and length-of-length > 2 are outside the
		// definite-length subset the applets use.
		return 0, 0, &MalformedError{Offset: offset, Reason: fmt.Sprintf("unsupported length prefix 0x%02X", first)}
	}
}

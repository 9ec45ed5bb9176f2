package tlv

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		tag      Tag
		value    []byte
		expected []byte
	}{
		{
			name:     "Short form length",
			tag:      0x4F,
			value:    Hex("FFFFFFFFFFAA"),
			expected: Hex("4F 06 FFFFFFFFFFAA"),
		},
		{
			name:     "Zero-length value",
			tag:      0x4F,
			value:    nil,
			expected: Hex("4F 00"),
		},
		{
			name:     "Two-byte tag",
			tag:      0xFF40,
			value:    Hex("AABB"),
			expected: Hex("FF40 02 AABB"),
		},
		{
			name:     "81-form length",
			tag:      0xE2,
			value:    bytes.Repeat([]byte{0x00}, 200),
			expected: append(Hex("E2 81 C8"), bytes.Repeat([]byte{0x00}, 200)...),
		},
		{
			name:     "82-form length",
			tag:      0xFF40,
			value:    bytes.Repeat([]byte{0x00}, 0x0104),
			expected: append(Hex("FF40 82 0104"), bytes.Repeat([]byte{0x00}, 0x0104)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.tag, tt.value)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_MaxLength(t *testing.T) {
	// The largest accepted value still round-trips.
	enc := Encode(0xFF40, make([]byte, MaxLength))
	decoded, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if len(decoded) != 1 || len(decoded[0].Value) != MaxLength {
		t.Fatalf("Decoded value length = %d, want %d", len(decoded[0].Value), MaxLength)
	}

	// One byte more must not silently truncate the length field.
	defer func() {
		if recover() == nil {
			t.Error("Encode() should panic on a value beyond MaxLength")
		}
	}()
	Encode(0xFF40, make([]byte, MaxLength+1))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []TLV
	}{
		{
			name:     "Empty input",
			input:    nil,
			expected: nil,
		},
		{
			name:  "Single element",
			input: Hex("4F 06 FFFFFFFFFFAA"),
			expected: []TLV{
				{Tag: 0x4F, Value: Hex("FFFFFFFFFFAA")},
			},
		},
		{
			name:  "Multiple elements with two-byte tag",
			input: Hex("D0 01 00", "DF20 02 CAFE"),
			expected: []TLV{
				{Tag: 0xD0, Value: Hex("00")},
				{Tag: 0xDF20, Value: Hex("CAFE")},
			},
		},
		{
			name:  "Zero-length value",
			input: Hex("F1 00"),
			expected: []TLV{
				{Tag: 0xF1, Value: []byte{}},
			},
		},
		{
			name:  "Constructed value returned raw",
			input: Hex("E1 05 4F 03 010203"),
			expected: []TLV{
				{Tag: 0xE1, Value: Hex("4F 03 010203")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, got, cmp.Comparer(func(a, b []byte) bool {
				return bytes.Equal(a, b)
			})); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		wantOffset int
		wantReason string
	}{
		{
			name:       "Truncated two-byte tag",
			input:      Hex("FF"),
			wantOffset: 0,
			wantReason: "truncated two-byte tag",
		},
		{
			name:       "Tag longer than two bytes",
			input:      Hex("FF80 01 00"),
			wantOffset: 0,
			wantReason: "two bytes",
		},
		{
			name:       "Missing length field",
			input:      Hex("4F"),
			wantOffset: 1,
			wantReason: "missing length",
		},
		{
			name:       "Length exceeds buffer",
			input:      Hex("4F 05 0102"),
			wantOffset: 2,
			wantReason: "exceeds remaining",
		},
		{
			name:       "Truncated 81-form length",
			input:      Hex("4F 81"),
			wantOffset: 1,
			wantReason: "truncated 81-form",
		},
		{
			name:       "Non-canonical 81-form length",
			input:      append(Hex("4F 81 7F"), bytes.Repeat([]byte{0x00}, 0x7F)...),
			wantOffset: 1,
			wantReason: "non-canonical 81-form",
		},
		{
			name:       "Truncated 82-form length",
			input:      Hex("4F 82 01"),
			wantOffset: 1,
			wantReason: "truncated 82-form",
		},
		{
			name:       "Non-canonical 82-form length",
			input:      append(Hex("4F 82 00 C8"), bytes.Repeat([]byte{0x00}, 200)...),
			wantOffset: 1,
			wantReason: "non-canonical 82-form",
		},
		{
			name:       "Indefinite length",
			input:      Hex("4F 80 00 00"),
			wantOffset: 1,
			wantReason: "unsupported length prefix",
		},
		{
			name:       "Error offset after valid element",
			input:      Hex("D0 01 00", "4F 05 01"),
			wantOffset: 5,
			wantReason: "exceeds remaining",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if err == nil {
				t.Fatal("Decode() expected error, got nil")
			}

			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("Decode() error type = %T, want *MalformedError", err)
			}
			if malformed.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", malformed.Offset, tt.wantOffset)
			}
			if !strings.Contains(malformed.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want substring %q", malformed.Reason, tt.wantReason)
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	elems := []TLV{
		{Tag: 0x4F, Value: Hex("A000000151")},
		{Tag: 0xC1, Value: bytes.Repeat([]byte{0xAB}, 20)},
		{Tag: 0xFF40, Value: bytes.Repeat([]byte{0x11}, 300)},
		{Tag: 0xF1, Value: []byte{}},
	}

	encoded := EncodeAll(elems)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}

	if len(decoded) != len(elems) {
		t.Fatalf("Decoded %d elements, want %d", len(decoded), len(elems))
	}
	for i := range elems {
		if decoded[i].Tag != elems[i].Tag {
			t.Errorf("Element %d tag = %s, want %s", i, decoded[i].Tag, elems[i].Tag)
		}
		if !bytes.Equal(decoded[i].Value, elems[i].Value) {
			t.Errorf("Element %d value mismatch", i)
		}
	}

	// Re-encoding must reproduce the input byte for byte.
	if !bytes.Equal(EncodeAll(decoded), encoded) {
		t.Error("Re-encoding did not reproduce the original bytes")
	}
}

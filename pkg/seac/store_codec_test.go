package seac

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cardforge/aram/pkg/tlv"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	hashA := tlv.Hex(hashAHex)
	hashB := tlv.Hex(hashBHex)
	perms := mustPermissions(t, tlv.Hex("0000000000000004"))

	rules := []Rule{
		{
			AID:         mustAID(t, tlv.Hex("FFFFFFFFFFAA")),
			DeviceAppID: mustDev(t, hashA),
			APDU:        APDUNever,
			NFC:         Never,
			Permissions: &perms,
		},
		{
			AID:         mustAID(t, tlv.Hex("FFFFFFFFFFBB")),
			DeviceAppID: mustDev(t, hashA),
			APDU:        APDUAlways,
			NFC:         Always,
		},
		{
			AID:         mustAID(t, tlv.Hex("FFFFFFFFFFCC")),
			DeviceAppID: mustDev(t, hashB),
			APDU:        mustFiltered(t, tlv.Hex("AABBCCDD01020304")),
			NFC:         Always,
			Permissions: &perms,
		},
		{
			AID:         WildcardAID,
			DeviceAppID: mustDev(t, hashB),
			APDU:        mustFiltered(t, tlv.Hex("AABBCCDD01020304 1122334405060708")),
			NFC:         Never,
			Permissions: &perms,
		},
	}

	store := NewStore()
	for _, r := range rules {
		if err := store.InsertOrReplace(r); err != nil {
			t.Fatalf("InsertOrReplace() error: %v", err)
		}
	}
	return store
}

func TestMarshalStore_RoundTrip(t *testing.T) {
	store := testStore(t)

	data, err := MarshalStore(store)
	if err != nil {
		t.Fatalf("MarshalStore() error: %v", err)
	}

	restored, err := UnmarshalStore(data)
	if err != nil {
		t.Fatalf("UnmarshalStore() error: %v", err)
	}

	want := store.Rules()
	got := restored.Rules()
	if len(got) != len(want) {
		t.Fatalf("Restored store has %d rules, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("Rule %d differs after round trip:\nbefore: %s\nafter:  %s", i, want[i], got[i])
		}
	}

	// Re-marshaling the restored store reproduces the canonical bytes.
	again, err := MarshalStore(restored)
	if err != nil {
		t.Fatalf("MarshalStore() error: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("Canonical form not stable:\nfirst:  %X\nsecond: %X", data, again)
	}
}

func TestMarshalStore_Empty(t *testing.T) {
	data, err := MarshalStore(NewStore())
	if err != nil {
		t.Fatalf("MarshalStore() error: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("MarshalStore() of empty store = %X, want no bytes", data)
	}

	store, err := UnmarshalStore(nil)
	if err != nil {
		t.Fatalf("UnmarshalStore(nil) error: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestUnmarshalStore_DuplicateReference(t *testing.T) {
	// The canonical form may carry several records under the same
	// reference; the last one wins, matching insert-or-replace.
	first := testRule(t, "FFFFFFFFFFAA")
	second := first
	second.APDU = APDUAlways
	second.NFC = Always

	var data []byte
	for _, r := range []Rule{first, second} {
		enc, err := r.ToTLV()
		if err != nil {
			t.Fatalf("ToTLV() error: %v", err)
		}
		data = append(data, enc...)
	}

	store, err := UnmarshalStore(data)
	if err != nil {
		t.Fatalf("UnmarshalStore() error: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if !store.Rules()[0].Equal(second) {
		t.Error("The later record should replace the earlier one")
	}
}

func TestUnmarshalStore_Malformed(t *testing.T) {
	valid, err := testRule(t, "FFFFFFFFFFAA").ToTLV()
	if err != nil {
		t.Fatalf("ToTLV() error: %v", err)
	}

	tests := []struct {
		name       string
		input      []byte
		wantOffset int
		wantIndex  int
	}{
		{
			name:       "Wrong top-level tag",
			input:      tlv.Hex("E1 00"),
			wantOffset: 0,
			wantIndex:  0,
		},
		{
			name:       "Bad record after a valid one",
			input:      append(bytes.Clone(valid), tlv.Hex("E2 02 E1 00")...),
			wantOffset: len(valid),
			wantIndex:  1,
		},
		{
			name:       "Truncated element",
			input:      tlv.Hex("E2 10 E1 00"),
			wantOffset: 2,
			wantIndex:  0,
		},
		{
			name:       "Non-canonical length",
			input:      tlv.Hex("E2 81 02 E1 00"),
			wantOffset: 1,
			wantIndex:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalStore(tt.input)
			if err == nil {
				t.Fatal("UnmarshalStore() expected error, got nil")
			}

			var malformed *MalformedStoreError
			if !errors.As(err, &malformed) {
				t.Fatalf("Error type = %T (%v), want *MalformedStoreError", err, err)
			}
			if malformed.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", malformed.Offset, tt.wantOffset)
			}
			if malformed.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", malformed.Index, tt.wantIndex)
			}
		})
	}
}

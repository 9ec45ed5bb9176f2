package script

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cardforge/aram/pkg/seac"
)

func TestRoundTrip_Run(t *testing.T) {
	store := testStore(t)
	baseline, err := seac.MarshalStore(store)
	if err != nil {
		t.Fatalf("MarshalStore() error: %v", err)
	}

	rt := NewRoundTrip("ARA-M")
	if rt.State() != StateInitial {
		t.Fatalf("State() = %s before Run, want initial", rt.State())
	}

	if err := rt.Run(store); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if rt.State() != StateVerified {
		t.Errorf("State() = %s, want verified", rt.State())
	}
	if rt.Script() != testScript {
		t.Errorf("Script() mismatch\nExpected:\n%s\nGot:\n%s", testScript, rt.Script())
	}
	if !bytes.Equal(rt.Baseline(), baseline) {
		t.Error("Baseline() should hold the pre-export canonical bytes")
	}

	// The store ends up holding the same rules it started with.
	restored, err := seac.MarshalStore(store)
	if err != nil {
		t.Fatalf("MarshalStore() error: %v", err)
	}
	if !bytes.Equal(restored, baseline) {
		t.Errorf("Store diverged through the round trip:\nbefore: %X\nafter:  %X", baseline, restored)
	}
}

func TestRoundTrip_EmptyStore(t *testing.T) {
	store := seac.NewStore()
	rt := NewRoundTrip("ARA-M")

	if err := rt.Run(store); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rt.State() != StateVerified {
		t.Errorf("State() = %s, want verified", rt.State())
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
	if len(rt.Baseline()) != 0 {
		t.Errorf("Baseline() = %X, want no bytes", rt.Baseline())
	}
}

func TestRoundTrip_SelectorFailureAborts(t *testing.T) {
	store := testStore(t)
	selectFailed := errors.New("no such applet")

	rt := NewRoundTrip("ARA-M")
	rt.Selector = &recordingSelector{failure: selectFailed}

	err := rt.Run(store)
	if !errors.Is(err, selectFailed) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, selectFailed)
	}
	if rt.State() != StateCleared {
		t.Errorf("State() = %s after a restore failure, want cleared", rt.State())
	}
}

func TestRoundTrip_InvalidTarget(t *testing.T) {
	store := testStore(t)
	rt := NewRoundTrip("ARA M")

	if err := rt.Run(store); err == nil {
		t.Fatal("Run() with a whitespace target label should fail at export")
	}
	if rt.State() != StateInitial {
		t.Errorf("State() = %s after an export failure, want initial", rt.State())
	}
	if store.Len() == 0 {
		t.Error("An export failure must leave the store untouched")
	}
}

func TestRoundTrip_VerifyMismatch(t *testing.T) {
	rules := testRules(t)
	encode := func(indices ...int) []byte {
		var out []byte
		for _, i := range indices {
			enc, err := rules[i].ToTLV()
			if err != nil {
				t.Fatalf("ToTLV() error: %v", err)
			}
			out = append(out, enc...)
		}
		return out
	}

	rt := NewRoundTrip("ARA-M")
	rt.baseline = encode(0, 1, 2)

	err := rt.verify(encode(0, 3, 2))
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("verify() error = %T (%v), want *MismatchError", err, err)
	}
	if mismatch.Index != 1 {
		t.Errorf("Index = %d, want 1", mismatch.Index)
	}
	if rt.State() != StateMismatched {
		t.Errorf("State() = %s after a divergence, want mismatched", rt.State())
	}

	// A matching comparison settles in the verified state.
	if err := rt.verify(encode(0, 1, 2)); err != nil {
		t.Fatalf("verify() error: %v", err)
	}
	if rt.State() != StateVerified {
		t.Errorf("State() = %s, want verified", rt.State())
	}
}

func TestFirstDivergingRecord(t *testing.T) {
	rules := testRules(t)
	encode := func(indices ...int) []byte {
		var out []byte
		for _, i := range indices {
			enc, err := rules[i].ToTLV()
			if err != nil {
				t.Fatalf("ToTLV() error: %v", err)
			}
			out = append(out, enc...)
		}
		return out
	}

	tests := []struct {
		name      string
		baseline  []byte
		restored  []byte
		wantIndex int
	}{
		{
			name:      "Differing middle record",
			baseline:  encode(0, 1, 2),
			restored:  encode(0, 3, 2),
			wantIndex: 1,
		},
		{
			name:      "Restored is a prefix",
			baseline:  encode(0, 1, 2),
			restored:  encode(0, 1),
			wantIndex: 2,
		},
		{
			name:      "Baseline empty",
			baseline:  nil,
			restored:  encode(0),
			wantIndex: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstDivergingRecord(tt.baseline, tt.restored); got != tt.wantIndex {
				t.Errorf("firstDivergingRecord() = %d, want %d", got, tt.wantIndex)
			}
		})
	}
}

func TestMismatchError(t *testing.T) {
	err := &MismatchError{Index: 1, Baseline: []byte{0x01, 0x02}, Restored: []byte{0x01}}
	want := "round-trip mismatch at record 1: baseline 2 bytes, restored 1 bytes"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInitial, "initial"},
		{StateExported, "exported"},
		{StateCleared, "cleared"},
		{StateRestored, "restored"},
		{StateVerified, "verified"},
		{StateMismatched, "mismatched"},
		{State(42), "unknown state (42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

package script

import (
	"bytes"
	"fmt"

	"github.com/cardforge/aram/pkg/seac"
)

// The round trip drives a store through export, clear, restore and
// verify, proving that the script form loses nothing: the canonical
// binary of the restored store must equal the pre-export baseline byte
// for byte. A divergence is a correctness signal and is reported, never
// repaired.

// State tracks round-trip progress.
type State int

const (
	StateInitial State = iota
	StateExported
	StateCleared
	StateRestored
	StateVerified
	StateMismatched
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateExported:
		return "exported"
	case StateCleared:
		return "cleared"
	case StateRestored:
		return "restored"
	case StateVerified:
		return "verified"
	case StateMismatched:
		return "mismatched"
	default:
		return fmt.Sprintf("unknown state (%d)", int(s))
	}
}

// MismatchError reports the first record position at which the restored
// store's canonical binary diverges from the baseline.
type MismatchError struct {
	Index    int // zero-based record index, len(records) if one side is a prefix of the other
	Baseline []byte
	Restored []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("round-trip mismatch at record %d: baseline %d bytes, restored %d bytes",
		e.Index, len(e.Baseline), len(e.Restored))
}

// RoundTrip orchestrates one export / clear / restore / verify pass over
// a store.
type RoundTrip struct {
	// Target is the label emitted in the exported select-target line.
	Target string
	// Selector, when set, is passed to the replay executor.
	Selector TargetSelector

	state    State
	baseline []byte
	script   string
}

// NewRoundTrip creates a controller exporting under the given target label.
func NewRoundTrip(target string) *RoundTrip {
	return &RoundTrip{Target: target}
}

// State returns the controller's current state.
func (rt *RoundTrip) State() State {
	return rt.state
}

// Script returns the exported script text. Empty before Run.
func (rt *RoundTrip) Script() string {
	return rt.script
}

// Baseline returns the canonical binary captured at export. Nil before Run.
func (rt *RoundTrip) Baseline() []byte {
	return bytes.Clone(rt.baseline)
}

// Run executes the full round trip on the store. On success the store
// holds the same rules as before, reconstructed from the script, and the
// controller is in StateVerified. On a verification failure Run returns
// a *MismatchError and the controller ends in StateMismatched; the store
// is left in its restored (divergent) state for diagnosis.
func (rt *RoundTrip) Run(store *seac.Store) error {
	// Export: snapshot the script text and the comparison baseline.
	baseline, err := seac.MarshalStore(store)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	script, err := Write(store, rt.Target)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	rt.baseline = baseline
	rt.script = script
	rt.state = StateExported

	// Clear: the replay must start from a known-empty store.
	store.DeleteAll()
	if n := store.Len(); n != 0 {
		return fmt.Errorf("clear: %d rules remain after delete-all", n)
	}
	rt.state = StateCleared

	// Restore: replay the exported script through the store interface.
	exec := &Executor{Store: store, Selector: rt.Selector}
	if err := exec.Execute(rt.script); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	rt.state = StateRestored

	// Verify: canonical binaries must match byte for byte.
	restored, err := seac.MarshalStore(store)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return rt.verify(restored)
}

// verify compares the restored canonical binary against the baseline and
// settles the controller in its terminal state: StateVerified on a byte
// for byte match, StateMismatched otherwise.
func (rt *RoundTrip) verify(restored []byte) error {
	if !bytes.Equal(rt.baseline, restored) {
		rt.state = StateMismatched
		return &MismatchError{
			Index:    firstDivergingRecord(rt.baseline, restored),
			Baseline: rt.baseline,
			Restored: restored,
		}
	}
	rt.state = StateVerified
	return nil
}

// firstDivergingRecord walks both canonical binaries record by record and
// returns the index of the first differing record.
func firstDivergingRecord(baseline, restored []byte) int {
	baseRecords := splitRecords(baseline)
	restRecords := splitRecords(restored)

	for i := 0; i < len(baseRecords) && i < len(restRecords); i++ {
		if !bytes.Equal(baseRecords[i], restRecords[i]) {
			return i
		}
	}
	return min(len(baseRecords), len(restRecords))
}

// splitRecords cuts canonical store bytes at record boundaries. Inputs
// come from MarshalStore, so a decode failure cannot normally happen; on
// one the remainder is kept as a single pseudo-record so the comparison
// still terminates.
func splitRecords(data []byte) [][]byte {
	store, err := seac.UnmarshalStore(data)
	if err != nil {
		return [][]byte{data}
	}

	var records [][]byte
	for _, r := range store.Rules() {
		enc, err := r.ToTLV()
		if err != nil {
			return [][]byte{data}
		}
		records = append(records, enc)
	}
	return records
}

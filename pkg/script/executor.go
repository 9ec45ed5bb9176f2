package script

import (
	"fmt"

	"github.com/cardforge/aram/pkg/seac"
)

// TargetSelector is the piece of the card transport the executor needs
// for select-target operations. It is optional: without one, select-target
// only records the label.
type TargetSelector interface {
	SelectApplication(label string) error
}

// Executor replays script operations against a rule store. On any
// failing operation it stops immediately; the returned error names the
// failing line. Remaining operations are never silently skipped.
type Executor struct {
	Store    *seac.Store
	Selector TargetSelector // optional

	// Target is the label of the last executed select-target.
	Target string
}

// NewExecutor creates an executor mutating the given store.
func NewExecutor(store *seac.Store) *Executor {
	return &Executor{Store: store}
}

// Execute parses the script text and replays every operation in order.
func (e *Executor) Execute(text string) error {
	ops, err := Parse(text)
	if err != nil {
		return err
	}
	return e.Replay(ops)
}

// Replay executes a pre-parsed operation sequence in order.
func (e *Executor) Replay(ops []Op) error {
	for _, op := range ops {
		if err := e.apply(op); err != nil {
			return fmt.Errorf("line %d: %s: %w", op.Line(), opName(op), err)
		}
	}
	return nil
}

func (e *Executor) apply(op Op) error {
	switch op := op.(type) {
	case SelectTarget:
		e.Target = op.Label
		if e.Selector != nil {
			return e.Selector.SelectApplication(op.Label)
		}
		return nil
	case DeleteAll:
		e.Store.DeleteAll()
		return nil
	case StoreRule:
		return e.Store.InsertOrReplace(op.Rule)
	case ReadAll:
		// Snapshot marker only; nothing to mutate.
		return nil
	default:
		return fmt.Errorf("unhandled operation type %T", op)
	}
}

func opName(op Op) string {
	switch op.(type) {
	case SelectTarget:
		return "select-target"
	case DeleteAll:
		return "delete-all"
	case StoreRule:
		return "store-rule"
	case ReadAll:
		return "read-all"
	default:
		return fmt.Sprintf("%T", op)
	}
}

package seac

import (
	"iter"
	"slices"
	"sync"
)

// Store is an ordered collection of access rules with (AID, device
// application) uniqueness.
//
// The store is a single logical resource: every public operation runs
// under one exclusive lock, matching the one-command-at-a-time nature of
// a card management session. Enumerate snapshots the rules at call time,
// so an enumeration never observes later mutations.
type Store struct {
	mu    sync.Mutex
	rules []Rule
}

// NewStore creates an empty rule store.
func NewStore() *Store {
	return &Store{}
}

type ruleKey struct {
	aid string
	dev string
	pkg string
}

func keyOf(r Rule) ruleKey {
	return ruleKey{aid: string(r.AID.Bytes()), dev: string(r.DeviceAppID.Bytes()), pkg: r.PackageName}
}

// InsertOrReplace adds a rule to the end of the store. If a rule with the
// same (AID, device application) reference exists it is removed first, so
// a replaced rule moves to the most-recent position. The rule is validated
// before any mutation.
func (s *Store) InsertOrReplace(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(r)
	s.rules = slices.DeleteFunc(s.rules, func(existing Rule) bool {
		return keyOf(existing) == key
	})
	s.rules = append(s.rules, r)
	return nil
}

// DeleteAll removes every rule. It is idempotent and never fails.
func (s *Store) DeleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
}

// Find returns the first rule stored under the given AID and device
// application reference, or ErrNotFound. Rules differing only in their
// package reference share these coordinates; enumeration disambiguates.
func (s *Store) Find(aid AIDRef, dev DeviceAppID) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rules {
		if r.AID.Equal(aid) && r.DeviceAppID.Equal(dev) {
			return r, nil
		}
	}
	return Rule{}, ErrNotFound
}

// Len returns the number of stored rules.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rules)
}

// Enumerate returns a restartable sequence over the rules as they were
// when Enumerate was called, in store order.
func (s *Store) Enumerate() iter.Seq[Rule] {
	s.mu.Lock()
	snapshot := slices.Clone(s.rules)
	s.mu.Unlock()

	return func(yield func(Rule) bool) {
		for _, r := range snapshot {
			if !yield(r) {
				return
			}
		}
	}
}

// Rules returns a copy of the stored rules in store order.
func (s *Store) Rules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rules)
}

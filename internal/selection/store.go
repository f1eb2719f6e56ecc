// Package selection holds the bounded, ordered list of selected catalog ids.
//
// The Store is the only mutation path. It loads its initial state from a
// Persister at construction and saves after every effective mutation, so
// the selection survives restarts.
package selection

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/star/satexplorer/internal/metrics"
)

// MaxSelected is the capacity of the selection.
const MaxSelected = 10

// Persister is the durable load/save boundary of the store.
type Persister interface {
	// Load returns the persisted ids. A nil slice with nil error means none.
	Load() ([]int, error)
	// Save replaces the persisted ids.
	Save(ids []int) error
}

// Observer is called with a copy of the selection after each effective mutation.
type Observer func(ids []int)

// Store is the selection state container. Safe for concurrent use; each
// operation is applied atomically under one mutex.
type Store struct {
	mu        sync.Mutex
	ids       []int
	persister Persister
	observers []Observer
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be notified of selection changes.
func WithObserver(fn Observer) Option {
	return func(s *Store) {
		s.observers = append(s.observers, fn)
	}
}

// NewStore creates a Store and rehydrates it from p. Absent or unreadable
// state yields an empty selection. Rehydrated ids are deduplicated and
// truncated to MaxSelected.
func NewStore(p Persister, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{persister: p, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	ids, err := p.Load()
	if err != nil {
		logger.Warn("persisted selection unreadable, starting empty",
			"component", "selection",
			"error", err,
		)
		ids = nil
	}
	s.ids = normalize(ids)
	metrics.SetSelectionSize(len(s.ids))

	logger.Info("selection restored", "component", "selection", "count", len(s.ids))
	return s
}

// Add appends id if it is positive, not selected and capacity remains. It
// reports whether the selection changed.
func (s *Store) Add(id int) bool {
	if id <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.ids, id) {
		return false
	}
	if len(s.ids) >= MaxSelected {
		metrics.IncSelectionRejected()
		return false
	}
	s.ids = append(s.ids, id)
	s.commit()
	return true
}

// Remove deletes id if present.
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.ids, id)
	if i < 0 {
		return false
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	s.commit()
	return true
}

// Clear empties the selection.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = nil
	s.commit()
}

// Selected returns a copy of the selected ids, oldest first.
func (s *Store) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// commit persists and publishes the current ids. Caller must hold mu, so
// saves and notifications happen in mutation order.
func (s *Store) commit() {
	snapshot := slices.Clone(s.ids)
	if snapshot == nil {
		snapshot = []int{}
	}
	if err := s.persister.Save(snapshot); err != nil {
		metrics.IncSelectionPersistErrors()
		s.logger.Error("persisting selection failed",
			"component", "selection",
			"count", len(snapshot),
			"error", err,
		)
	}
	metrics.SetSelectionSize(len(snapshot))
	for _, fn := range s.observers {
		fn(slices.Clone(snapshot))
	}
}

// normalize keeps the first MaxSelected distinct positive ids, in order.
func normalize(ids []int) []int {
	out := make([]int, 0, min(len(ids), MaxSelected))
	for _, id := range ids {
		if len(out) == MaxSelected {
			break
		}
		if id > 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

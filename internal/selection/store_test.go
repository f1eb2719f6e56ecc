package selection

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/star/satexplorer/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// mapKV is an in-memory KV for persister tests.
type mapKV struct {
	values map[string]string
	putErr error
}

func (m *mapKV) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapKV) Put(key, value string) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type failingPersister struct{}

func (failingPersister) Load() ([]int, error) { return nil, errors.New("disk on fire") }
func (failingPersister) Save([]int) error     { return errors.New("disk on fire") }

func TestAddRemoveClear(t *testing.T) {
	s := NewStore(&MemoryPersister{}, testLogger())

	assert.Equal(t, s.Add(5), true)
	assert.Equal(t, s.Add(3), true)
	assert.Equal(t, s.Add(5), false)
	assert.Equal(t, s.Selected(), []int{5, 3})

	assert.Equal(t, s.Remove(42), false)
	assert.Equal(t, s.Remove(5), true)
	assert.Equal(t, s.Selected(), []int{3})

	s.Clear()
	assert.Equal(t, len(s.Selected()), 0)
	s.Clear()
	assert.Equal(t, len(s.Selected()), 0)
}

func TestAddAtCapacityIsNoop(t *testing.T) {
	s := NewStore(&MemoryPersister{}, testLogger())
	for i := 1; i <= MaxSelected; i++ {
		if !s.Add(i) {
			t.Fatalf("Add(%d) should succeed", i)
		}
	}
	before := s.Selected()

	if s.Add(99) {
		t.Error("Add beyond capacity should be a no-op")
	}
	if !reflect.DeepEqual(s.Selected(), before) {
		t.Errorf("selection changed at capacity: %v", s.Selected())
	}
	// Re-adding a member at capacity is also a no-op.
	if s.Add(1) {
		t.Error("Add of existing id should be a no-op")
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	p := &MemoryPersister{}
	s := NewStore(p, testLogger())
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		id := rng.Intn(25)
		switch rng.Intn(10) {
		case 0:
			s.Clear()
		case 1, 2, 3:
			s.Remove(id)
		default:
			s.Add(id)
		}

		got := s.Selected()
		if len(got) > MaxSelected {
			t.Fatalf("step %d: length %d exceeds %d", i, len(got), MaxSelected)
		}
		seen := map[int]bool{}
		for _, v := range got {
			if seen[v] {
				t.Fatalf("step %d: duplicate id %d in %v", i, v, got)
			}
			seen[v] = true
		}
	}
	if got, want := NewStore(p, testLogger()).Selected(), s.Selected(); !slices.Equal(got, want) {
		t.Errorf("reloaded %v, want %v", got, want)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	s := NewStore(&MemoryPersister{}, testLogger())
	for _, id := range []int{30, 10, 20} {
		s.Add(id)
	}
	s.Remove(10)
	s.Add(5)
	assert.Equal(t, s.Selected(), []int{30, 20, 5})
}

func TestSelectedReturnsCopy(t *testing.T) {
	s := NewStore(&MemoryPersister{}, testLogger())
	s.Add(1)
	got := s.Selected()
	got[0] = 999
	assert.Equal(t, s.Selected(), []int{1})
}

func TestPersistReloadRoundTrip(t *testing.T) {
	kv := &mapKV{}
	s := NewStore(NewKVPersister(kv), testLogger())
	s.Add(25544)
	s.Add(44713)
	s.Add(20580)

	fresh := NewStore(NewKVPersister(kv), testLogger())
	assert.Equal(t, fresh.Selected(), []int{25544, 44713, 20580})
	assert.Equal(t, kv.values[StorageKey], `{"state":{"selected":[25544,44713,20580]},"version":0}`)
}

func TestNonPositiveIDsAreNeverStored(t *testing.T) {
	p := &MemoryPersister{}
	s := NewStore(p, testLogger())
	assert.Equal(t, s.Add(0), false)
	assert.Equal(t, s.Add(7), true)
	assert.Equal(t, s.Add(-3), false)

	before := s.Selected()
	assert.Equal(t, before, []int{7})
	assert.Equal(t, NewStore(p, testLogger()).Selected(), before)
}

func TestClearPersistsEmptyList(t *testing.T) {
	kv := &mapKV{}
	s := NewStore(NewKVPersister(kv), testLogger())
	s.Add(1)
	s.Clear()
	assert.Equal(t, kv.values[StorageKey], `{"state":{"selected":[]},"version":0}`)
	assert.Equal(t, len(NewStore(NewKVPersister(kv), testLogger()).Selected()), 0)
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"wrong shape", `{"state":{"selected":"nope"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := &mapKV{values: map[string]string{StorageKey: tt.raw}}
			s := NewStore(NewKVPersister(kv), testLogger())
			assert.Equal(t, len(s.Selected()), 0)
			// Store stays usable and overwrites the corrupt value.
			s.Add(7)
			assert.Equal(t, NewStore(NewKVPersister(kv), testLogger()).Selected(), []int{7})
		})
	}
}

func TestRehydrateNormalizes(t *testing.T) {
	p := &MemoryPersister{}
	p.Save([]int{1, 2, 2, 0, 3, 4, -5, 5, 6, 7, 8, 9, 10, 11, 12})
	s := NewStore(p, testLogger())
	assert.Equal(t, s.Selected(), []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	s := NewStore(failingPersister{}, testLogger())
	assert.Equal(t, len(s.Selected()), 0)
	assert.Equal(t, s.Add(1), true)
	assert.Equal(t, s.Selected(), []int{1})

	kv := &mapKV{putErr: errors.New("read-only")}
	s = NewStore(NewKVPersister(kv), testLogger())
	s.Add(2)
	assert.Equal(t, s.Selected(), []int{2})
}

func TestObserverSeesEffectiveMutations(t *testing.T) {
	var mu sync.Mutex
	var events [][]int
	s := NewStore(&MemoryPersister{}, testLogger(), WithObserver(func(ids []int) {
		mu.Lock()
		events = append(events, ids)
		mu.Unlock()
	}))

	s.Add(1)
	s.Add(1) // no-op
	s.Add(2)
	s.Remove(9) // no-op
	s.Remove(1)
	s.Clear()

	want := [][]int{{1}, {1, 2}, {2}, {}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestConcurrentAddsRespectCapacity(t *testing.T) {
	s := NewStore(&MemoryPersister{}, testLogger())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.Add(id)
		}(i)
	}
	wg.Wait()

	got := s.Selected()
	assert.Equal(t, len(got), MaxSelected)
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	assert.Equal(t, len(slices.Compact(sorted)), MaxSelected)
}

func TestSQLitePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.db")

	kv, err := storage.Open(path)
	if err != nil {
		t.Fatalf("storage.Open() failed: %v", err)
	}
	s := NewStore(NewKVPersister(kv), testLogger())
	s.Add(3)
	s.Add(1)
	s.Add(2)
	kv.Close()

	kv, err = storage.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()

	assert.Equal(t, NewStore(NewKVPersister(kv), testLogger()).Selected(), []int{3, 1, 2})
}

package selection

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// StorageKey is the durable key holding the selected ids.
const StorageKey = "satellite-storage"

// KV is the key-value capability the persister writes through.
type KV interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// persistedState mirrors the browser store's persisted layout:
// {"state":{"selected":[...]},"version":0}.
type persistedState struct {
	State struct {
		Selected []int `json:"selected"`
	} `json:"state"`
	Version int `json:"version"`
}

// KVPersister stores the selection as one JSON value under StorageKey.
type KVPersister struct {
	kv  KV
	key string
}

var _ Persister = (*KVPersister)(nil)

// NewKVPersister creates a persister writing under StorageKey.
func NewKVPersister(kv KV) *KVPersister {
	return &KVPersister{kv: kv, key: StorageKey}
}

// Load reads and decodes the persisted ids.
func (p *KVPersister) Load() ([]int, error) {
	raw, ok, err := p.kv.Get(p.key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.key, err)
	}
	if !ok {
		return nil, nil
	}

	var st persistedState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.key, err)
	}
	return st.State.Selected, nil
}

// Save encodes ids and replaces the stored value.
func (p *KVPersister) Save(ids []int) error {
	var st persistedState
	st.State.Selected = ids
	if st.State.Selected == nil {
		st.State.Selected = []int{}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", p.key, err)
	}
	if err := p.kv.Put(p.key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", p.key, err)
	}
	return nil
}

// MemoryPersister keeps the selection in memory. serve uses it when
// storage.ephemeral is set.
type MemoryPersister struct {
	mu  sync.Mutex
	ids []int
	set bool
}

var _ Persister = (*MemoryPersister)(nil)

// Load returns the last saved ids.
func (m *MemoryPersister) Load() ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return nil, nil
	}
	return slices.Clone(m.ids), nil
}

// Save records ids.
func (m *MemoryPersister) Save(ids []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = slices.Clone(ids)
	m.set = true
	return nil
}

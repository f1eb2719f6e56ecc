// Package catalog fetches the space-object catalog and keeps the current
// snapshot in memory behind a stale-while-revalidate cache.
package catalog

import (
	"log/slog"
	"time"
)

// Known object types. The field is an open enum; other values pass through.
const (
	TypePayload    = "PAYLOAD"
	TypeDebris     = "DEBRIS"
	TypeRocketBody = "ROCKET BODY"
	TypeUnknown    = "UNKNOWN"
)

// ObjectTypes lists the known object types in display order.
var ObjectTypes = []string{TypePayload, TypeDebris, TypeRocketBody, TypeUnknown}

// Entry is one tracked space object as returned by the catalog backend.
type Entry struct {
	CatalogID   int    `json:"noradCatId"`
	Name        string `json:"name"`
	OrbitCode   string `json:"orbitCode"` // raw wire form, e.g. "{LEO}"
	ObjectType  string `json:"objectType"`
	CountryCode string `json:"countryCode"`
	LaunchDate  string `json:"launchDate"`
}

// envelope is the backend response wrapper. Only Data is consumed.
type envelope struct {
	Data       []Entry `json:"data"`
	StatusCode int     `json:"statusCode"`
	Message    string  `json:"message"`
}

// Snapshot is one fetched catalog. Snapshots are immutable and replaced whole.
type Snapshot struct {
	Source    string
	FetchedAt time.Time
	Entries   []Entry

	index map[int]int
}

// NewSnapshot builds a snapshot from fetched entries. Entries with a catalog
// id already seen are dropped so ids stay unique within the snapshot.
func NewSnapshot(source string, fetchedAt time.Time, entries []Entry, logger *slog.Logger) *Snapshot {
	s := &Snapshot{
		Source:    source,
		FetchedAt: fetchedAt,
		Entries:   make([]Entry, 0, len(entries)),
		index:     make(map[int]int, len(entries)),
	}
	var dropped int
	for _, e := range entries {
		if _, ok := s.index[e.CatalogID]; ok {
			dropped++
			continue
		}
		s.index[e.CatalogID] = len(s.Entries)
		s.Entries = append(s.Entries, e)
	}
	if dropped > 0 && logger != nil {
		logger.Warn("dropped duplicate catalog entries", "component", "catalog", "dropped", dropped)
	}
	return s
}

// Lookup returns the entry with the given catalog id.
func (s *Snapshot) Lookup(id int) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Entry{}, false
	}
	return s.Entries[i], true
}

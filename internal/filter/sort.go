package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/star/satexplorer/internal/catalog"
)

// SortKey names a display column.
type SortKey string

const (
	SortNone    SortKey = ""
	SortID      SortKey = "id"
	SortName    SortKey = "name"
	SortOrbit   SortKey = "orbit"
	SortType    SortKey = "type"
	SortCountry SortKey = "country"
	SortLaunch  SortKey = "launch"
)

// ParseSortKey validates a sort column name. The empty string means no sort.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortID, SortName, SortOrbit, SortType, SortCountry, SortLaunch:
		return k, nil
	default:
		return SortNone, fmt.Errorf("unknown sort column %q", s)
	}
}

// Sort returns a stably sorted copy of entries. It is a display concern only:
// the input, and therefore the filter output, is left untouched.
func Sort(entries []catalog.Entry, key SortKey, ascending bool) []catalog.Entry {
	out := make([]catalog.Entry, len(entries))
	copy(out, entries)
	if key == SortNone {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ascending {
			return less(a, b, key)
		}
		return less(b, a, key)
	})
	return out
}

func less(a, b catalog.Entry, key SortKey) bool {
	switch key {
	case SortID:
		return a.CatalogID < b.CatalogID
	case SortName:
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	case SortOrbit:
		return catalog.DisplayOrbitCode(a.OrbitCode) < catalog.DisplayOrbitCode(b.OrbitCode)
	case SortType:
		return a.ObjectType < b.ObjectType
	case SortCountry:
		return a.CountryCode < b.CountryCode
	case SortLaunch:
		return a.LaunchDate < b.LaunchDate
	default:
		return false
	}
}

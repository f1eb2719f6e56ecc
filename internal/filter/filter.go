// Package filter derives the visible subset of the catalog from user criteria.
// Everything here is a pure function over its inputs; callers re-run it
// whenever the catalog or any criterion changes.
package filter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/star/satexplorer/internal/catalog"
)

// Criteria is the ephemeral filter state entered by the user.
type Criteria struct {
	SearchText string
	// Categories holds objectType values. Empty matches all.
	Categories []string
	// OrbitCodes holds bare codes such as "LEO". Empty matches all.
	OrbitCodes []string
}

// predicate is one independent filter step.
type predicate func(catalog.Entry) bool

// Apply returns the entries matching every non-empty criterion, in input order.
// The input slice is not modified.
func Apply(entries []catalog.Entry, c Criteria) []catalog.Entry {
	preds := c.predicates()
	out := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		if matchesAll(e, preds) {
			out = append(out, e)
		}
	}
	return out
}

func matchesAll(e catalog.Entry, preds []predicate) bool {
	for _, p := range preds {
		if !p(e) {
			return false
		}
	}
	return true
}

// predicates builds the active steps, set lookups first, substring scan last.
func (c Criteria) predicates() []predicate {
	var preds []predicate
	if p := categoryPredicate(c.Categories); p != nil {
		preds = append(preds, p)
	}
	if p := orbitPredicate(c.OrbitCodes); p != nil {
		preds = append(preds, p)
	}
	if p := searchPredicate(c.SearchText); p != nil {
		preds = append(preds, p)
	}
	return preds
}

func categoryPredicate(categories []string) predicate {
	if len(categories) == 0 {
		return nil // no filter = show all
	}
	set := make(map[string]bool, len(categories))
	for _, cat := range categories {
		set[cat] = true
	}
	return func(e catalog.Entry) bool {
		return set[e.ObjectType]
	}
}

// orbitPredicate compares against the raw wire form, so "LEO" matches "{LEO}"
// and never a bare "LEO".
func orbitPredicate(codes []string) predicate {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[catalog.WrapOrbitCode(code)] = true
	}
	return func(e catalog.Entry) bool {
		return set[e.OrbitCode]
	}
}

func searchPredicate(text string) predicate {
	if text == "" {
		return nil
	}
	q := strings.ToLower(text)
	return func(e catalog.Entry) bool {
		return strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strconv.Itoa(e.CatalogID), q)
	}
}

// FirstN returns the catalog ids of the first n entries, in order.
func FirstN(entries []catalog.Entry, n int) []int {
	if n > len(entries) {
		n = len(entries)
	}
	if n <= 0 {
		return nil
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = entries[i].CatalogID
	}
	return ids
}

// ParseCriteria reads criteria from query parameters: q, category and orbit.
// category and orbit may repeat or be comma-joined. Blank items are dropped.
func ParseCriteria(v url.Values) Criteria {
	return Criteria{
		SearchText: strings.TrimSpace(v.Get("q")),
		Categories: splitList(v["category"]),
		OrbitCodes: splitList(v["orbit"]),
	}
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

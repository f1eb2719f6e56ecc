package filter

import "github.com/star/satexplorer/internal/catalog"

// Facet is one filter chip with the number of catalog entries it matches.
type Facet struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Counts are the facet totals shown beside the category and orbit filters.
type Counts struct {
	All        int     `json:"all"`
	Categories []Facet `json:"categories"`
	OrbitCodes []Facet `json:"orbit_codes"`
}

// CountFacets counts entries per object type and per orbit code. Known
// types always appear, in their fixed order.
// Orbit codes are counted by their {CODE} wire form, the same way the
// orbit filter matches.
func CountFacets(entries []catalog.Entry) Counts {
	byType := make(map[string]int)
	byOrbit := make(map[string]int)
	for _, e := range entries {
		byType[e.ObjectType]++
		byOrbit[e.OrbitCode]++
	}

	c := Counts{
		All:        len(entries),
		Categories: make([]Facet, 0, len(catalog.ObjectTypes)),
		OrbitCodes: make([]Facet, 0, len(catalog.OrbitCodes)),
	}
	for _, t := range catalog.ObjectTypes {
		c.Categories = append(c.Categories, Facet{Value: t, Count: byType[t]})
		delete(byType, t)
	}
	// Types outside the known set follow in first-seen order.
	for _, e := range entries {
		if n, ok := byType[e.ObjectType]; ok && e.ObjectType != "" {
			c.Categories = append(c.Categories, Facet{Value: e.ObjectType, Count: n})
			delete(byType, e.ObjectType)
		}
	}
	for _, code := range catalog.OrbitCodes {
		c.OrbitCodes = append(c.OrbitCodes, Facet{Value: code, Count: byOrbit[catalog.WrapOrbitCode(code)]})
	}
	return c
}

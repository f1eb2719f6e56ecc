package explorer

import (
	"time"

	"github.com/star/satexplorer/internal/catalog"
	"github.com/star/satexplorer/internal/filter"
	"github.com/star/satexplorer/internal/selection"
)

// Row is one catalog entry formatted for display.
type Row struct {
	CatalogID    int    `json:"noradCatId"`
	Name         string `json:"name"`
	OrbitCode    string `json:"orbitCode"`    // delimiters stripped
	OrbitCodeRaw string `json:"orbitCodeRaw"` // wire form
	ObjectType   string `json:"objectType"`
	CountryCode  string `json:"countryCode"`
	LaunchDate   string `json:"launchDate"`
	LaunchAge    string `json:"launchAge,omitempty"`
	Selected     bool   `json:"selected"`
}

func newRow(e catalog.Entry, selected bool, now time.Time) Row {
	date, age := catalog.FormatLaunchDate(e.LaunchDate, now)
	return Row{
		CatalogID:    e.CatalogID,
		Name:         e.Name,
		OrbitCode:    catalog.DisplayOrbitCode(e.OrbitCode),
		OrbitCodeRaw: e.OrbitCode,
		ObjectType:   e.ObjectType,
		CountryCode:  e.CountryCode,
		LaunchDate:   date,
		LaunchAge:    age,
		Selected:     selected,
	}
}

// SelectionState is the selection as presentation sees it.
type SelectionState struct {
	IDs       []int `json:"ids"`
	Count     int   `json:"count"`
	Max       int   `json:"max"`
	CanSelect bool  `json:"can_select"`
}

func newSelectionState(ids []int) SelectionState {
	if ids == nil {
		ids = []int{}
	}
	return SelectionState{
		IDs:       ids,
		Count:     len(ids),
		Max:       selection.MaxSelected,
		CanSelect: len(ids) < selection.MaxSelected,
	}
}

// View is the main page model.
type View struct {
	Status    catalog.Status `json:"status"`
	Rows      []Row          `json:"rows"`
	Count     int            `json:"count"`
	Total     int            `json:"total"`
	Counts    filter.Counts  `json:"counts"`
	Selection SelectionState `json:"selection"`
}

// Notice is a transient, auto-expiring warning.
type Notice struct {
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	ExpiresInMS int64     `json:"expires_in_ms"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SelectResult reports the outcome of a single select.
type SelectResult struct {
	Added     bool           `json:"added"`
	Selection SelectionState `json:"selection"`
	Notice    *Notice        `json:"notice,omitempty"`
}

// BulkAction names what the bulk toggle did.
type BulkAction string

const (
	BulkSelected BulkAction = "selected"
	BulkCleared  BulkAction = "cleared"
)

// BulkResult reports the outcome of the bulk toggle.
type BulkResult struct {
	Action    BulkAction     `json:"action"`
	Added     int            `json:"added"`
	Selection SelectionState `json:"selection"`
}

// Overview is the selected-assets page model.
type Overview struct {
	Rows       []Row `json:"rows"`
	Count      int   `json:"count"`
	Unresolved []int `json:"unresolved"`
}

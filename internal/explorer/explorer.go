// Package explorer composes the catalog cache, the filter pipeline and the
// selection store into the views the presentation layer renders.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/star/satexplorer/internal/catalog"
	"github.com/star/satexplorer/internal/filter"
	"github.com/star/satexplorer/internal/selection"
)

// NoticeTTL is how long a transient notice stays visible.
const NoticeTTL = 3 * time.Second

// ErrUnknownObject is returned when selecting an id absent from the catalog.
var ErrUnknownObject = errors.New("object not in catalog")

// CatalogReader is the read side of the catalog cache.
type CatalogReader interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
	Status() catalog.Status
}

// Selection is the selection store surface.
type Selection interface {
	Add(id int) bool
	Remove(id int) bool
	Clear()
	Selected() []int
}

// Explorer serves derived views. It holds no state of its own.
type Explorer struct {
	catalog   CatalogReader
	selection Selection
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Explorer.
func New(cat CatalogReader, sel Selection, logger *slog.Logger) *Explorer {
	return &Explorer{
		catalog:   cat,
		selection: sel,
		logger:    logger,
		now:       time.Now,
	}
}

// Status passes through the catalog cache status.
func (x *Explorer) Status() catalog.Status {
	return x.catalog.Status()
}

// View renders the main table: the filtered, display-sorted catalog plus
// facet counts over the full catalog and the current selection.
func (x *Explorer) View(ctx context.Context, c filter.Criteria, key filter.SortKey, ascending bool) (View, error) {
	snap, err := x.catalog.Snapshot(ctx)
	if err != nil {
		return View{}, fmt.Errorf("loading view: %w", err)
	}

	filtered := filter.Apply(snap.Entries, c)
	sorted := filter.Sort(filtered, key, ascending)
	selected := x.selection.Selected()

	return View{
		Status:    x.catalog.Status(),
		Rows:      x.rows(sorted, selected),
		Count:     len(filtered),
		Total:     len(snap.Entries),
		Counts:    filter.CountFacets(snap.Entries),
		Selection: newSelectionState(selected),
	}, nil
}

// Select adds id to the selection. At capacity the selection is unchanged
// and the result carries a transient notice.
func (x *Explorer) Select(ctx context.Context, id int) (SelectResult, error) {
	snap, err := x.catalog.Snapshot(ctx)
	if err != nil {
		return SelectResult{}, fmt.Errorf("selecting %d: %w", id, err)
	}
	if _, ok := snap.Lookup(id); !ok {
		return SelectResult{}, fmt.Errorf("selecting %d: %w", id, ErrUnknownObject)
	}

	added := x.selection.Add(id)
	selected := x.selection.Selected()
	res := SelectResult{Added: added, Selection: newSelectionState(selected)}
	if !added && !slices.Contains(selected, id) {
		res.Notice = x.capacityNotice()
	}
	return res, nil
}

// Deselect removes id and reports whether it was selected. Removing an id
// that is not selected is a no-op.
func (x *Explorer) Deselect(id int) (SelectionState, bool) {
	removed := x.selection.Remove(id)
	return newSelectionState(x.selection.Selected()), removed
}

// ClearSelection empties the selection.
func (x *Explorer) ClearSelection() SelectionState {
	x.selection.Clear()
	return newSelectionState(x.selection.Selected())
}

// BulkToggle is the single select/clear control. With nothing selected it
// selects the first MaxSelected entries of the filtered view in filtered
// order. With anything selected it clears the whole selection.
func (x *Explorer) BulkToggle(ctx context.Context, c filter.Criteria) (BulkResult, error) {
	if len(x.selection.Selected()) > 0 {
		x.selection.Clear()
		x.logger.Info("selection cleared by bulk toggle", "component", "explorer")
		return BulkResult{Action: BulkCleared, Selection: newSelectionState(x.selection.Selected())}, nil
	}

	snap, err := x.catalog.Snapshot(ctx)
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk select: %w", err)
	}

	ids := filter.FirstN(filter.Apply(snap.Entries, c), selection.MaxSelected)
	added := 0
	for _, id := range ids {
		if x.selection.Add(id) {
			added++
		}
	}
	x.logger.Info("selection filled by bulk toggle", "component", "explorer", "added", added)
	return BulkResult{Action: BulkSelected, Added: added, Selection: newSelectionState(x.selection.Selected())}, nil
}

// Overview lists the selected objects in selection order. Ids no longer in
// the catalog are reported separately.
func (x *Explorer) Overview(ctx context.Context) (Overview, error) {
	snap, err := x.catalog.Snapshot(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("loading overview: %w", err)
	}

	selected := x.selection.Selected()
	ov := Overview{Rows: make([]Row, 0, len(selected)), Unresolved: []int{}}
	now := x.now()
	for _, id := range selected {
		e, ok := snap.Lookup(id)
		if !ok {
			ov.Unresolved = append(ov.Unresolved, id)
			continue
		}
		ov.Rows = append(ov.Rows, newRow(e, true, now))
	}
	ov.Count = len(ov.Rows)
	return ov, nil
}

// Selection reports the current selection state.
func (x *Explorer) Selection() SelectionState {
	return newSelectionState(x.selection.Selected())
}

func (x *Explorer) capacityNotice() *Notice {
	return &Notice{
		Level:       "warning",
		Message:     fmt.Sprintf("You can select at most %d objects", selection.MaxSelected),
		ExpiresInMS: NoticeTTL.Milliseconds(),
		ExpiresAt:   x.now().Add(NoticeTTL),
	}
}

func (x *Explorer) rows(entries []catalog.Entry, selected []int) []Row {
	set := make(map[int]bool, len(selected))
	for _, id := range selected {
		set[id] = true
	}
	now := x.now()
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = newRow(e, set[e.CatalogID], now)
	}
	return rows
}

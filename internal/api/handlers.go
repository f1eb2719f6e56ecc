package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/star/satexplorer/internal/explorer"
	"github.com/star/satexplorer/internal/filter"
	"github.com/star/satexplorer/internal/httputil"
)

// errCatalogUnavailable is the body for every catalog-dependent failure.
const errCatalogUnavailable = "failed to load satellite data"

type handlers struct {
	explorer *explorer.Explorer
	catalog  CatalogControl
	logger   *slog.Logger
}

// catalog serves the filtered, sorted main view.
// GET /api/v1/catalog?q=iss&category=PAYLOAD&orbit=LEO&sort=name&order=asc
func (h *handlers) catalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := filter.ParseSortKey(q.Get("sort"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ascending, err := parseOrder(q.Get("order"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.explorer.View(r.Context(), filter.ParseCriteria(q), key, ascending)
	if err != nil {
		h.unavailable(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handlers) catalogStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.explorer.Status())
}

// catalogRefresh forces a reload, the manual retry after a terminal error.
func (h *handlers) catalogRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		h.unavailable(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.explorer.Status())
}

func (h *handlers) selection(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.explorer.Selection())
}

// selectionAdd answers 409 with a notice when the selection is full.
func (h *handlers) selectionAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.explorer.Select(r.Context(), id)
	switch {
	case errors.Is(err, explorer.ErrUnknownObject):
		httputil.WriteError(w, http.StatusNotFound, "object "+strconv.Itoa(id)+" not in catalog")
		return
	case err != nil:
		h.unavailable(w, r, err)
		return
	}

	if res.Notice != nil {
		httputil.WriteJSON(w, http.StatusConflict, res)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// selectionRemove answers 204 when id was not selected.
func (h *handlers) selectionRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	state, removed := h.explorer.Deselect(id)
	if !removed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (h *handlers) selectionClear(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.explorer.ClearSelection())
}

// selectionBulk runs the select-first-N-or-clear toggle against the
// criteria currently shown.
// POST /api/v1/selection/bulk?q=&category=&orbit=
func (h *handlers) selectionBulk(w http.ResponseWriter, r *http.Request) {
	res, err := h.explorer.BulkToggle(r.Context(), filter.ParseCriteria(r.URL.Query()))
	if err != nil {
		h.unavailable(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handlers) selectionOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.explorer.Overview(r.Context())
	if err != nil {
		h.unavailable(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ov)
}

func (h *handlers) unavailable(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("catalog unavailable",
		"component", "api",
		"path", r.URL.Path,
		"error", err,
	)
	httputil.WriteError(w, http.StatusServiceUnavailable, errCatalogUnavailable)
}

// pathID parses the {id} path value as a positive catalog id, writing a 400
// when it is not one.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid catalog id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

func parseOrder(s string) (ascending bool, err error) {
	switch s {
	case "", "asc":
		return true, nil
	case "desc":
		return false, nil
	default:
		return false, errors.New("order must be asc or desc")
	}
}

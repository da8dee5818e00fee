package api

import (
	"errors"
	"net/http"

	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/handler/util"

	"github.com/labstack/echo/v4"
)

// The HistoryHandler type provides handler functions for reading the sources that have ended
type HistoryHandler struct {
	store history.Store
}

// NewHistory returns a new History type. You have to provide a history store.
func NewHistory(store history.Store) *HistoryHandler {
	return &HistoryHandler{
		store: store,
	}
}

// List returns the most recently ended sources first
func (h *HistoryHandler) List(c echo.Context) error {
	limit, err := util.IntQuery(c, "limit", 0)
	if err != nil || limit < 0 {
		return api.Err(http.StatusBadRequest, "", "invalid limit")
	}

	list, err := h.store.List(limit)
	if err != nil {
		return api.Err(http.StatusInternalServerError, "", "%s", err.Error())
	}

	entries := make([]api.HistoryEntry, len(list))

	for i, e := range list {
		entries[i].Unmarshal(e)
	}

	return c.JSON(http.StatusOK, entries)
}

// Get returns the history entry with the given ID
func (h *HistoryHandler) Get(c echo.Context) error {
	id := util.PathParam(c, "id")

	e, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return api.Err(http.StatusNotFound, "", "history entry not found: %s", id)
		}

		return api.Err(http.StatusInternalServerError, "", "%s", err.Error())
	}

	entry := api.HistoryEntry{}
	entry.Unmarshal(e)

	return c.JSON(http.StatusOK, entry)
}

package api

import (
	"errors"
	"net/http"

	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/handler/util"
	"github.com/datarhei/ffstats/source"

	"github.com/labstack/echo/v4"
)

// The SourcesHandler type provides handler functions for reading and removing sources
type SourcesHandler struct {
	registry source.Registry
}

// NewSources returns a new Sources type. You have to provide a source registry.
func NewSources(registry source.Registry) *SourcesHandler {
	return &SourcesHandler{
		registry: registry,
	}
}

// List returns all sources, optionally filtered by a glob pattern for the source ID
func (h *SourcesHandler) List(c echo.Context) error {
	filter := util.DefaultQuery(c, "filter", "")

	list, err := h.registry.List(filter)
	if err != nil {
		return api.Err(http.StatusBadRequest, "", "%s", err.Error())
	}

	sources := make([]api.Source, len(list))

	for i, s := range list {
		sources[i].Unmarshal(s)
	}

	return c.JSON(http.StatusOK, sources)
}

// Get returns the source with the given ID
func (h *SourcesHandler) Get(c echo.Context) error {
	id := util.PathParam(c, "id")

	s, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return api.Err(http.StatusNotFound, "", "source not found: %s", id)
		}

		return api.Err(http.StatusInternalServerError, "", "%s", err.Error())
	}

	src := api.Source{}
	src.Unmarshal(s)

	return c.JSON(http.StatusOK, src)
}

// Delete removes the source with the given ID
func (h *SourcesHandler) Delete(c echo.Context) error {
	id := util.PathParam(c, "id")

	if err := h.registry.Delete(id); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return api.Err(http.StatusNotFound, "", "source not found: %s", id)
		}

		return api.Err(http.StatusInternalServerError, "", "%s", err.Error())
	}

	return c.JSON(http.StatusOK, "OK")
}

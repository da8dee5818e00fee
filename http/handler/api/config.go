package api

import (
	"net/http"

	"github.com/datarhei/ffstats/config/store"
	"github.com/datarhei/ffstats/http/api"

	"github.com/labstack/echo/v4"
)

// The ConfigHandler type provides a handler function for reading the active configuration.
type ConfigHandler struct {
	store store.Store
}

// NewConfig return a new Config type. You have to provide a valid config store.
func NewConfig(store store.Store) *ConfigHandler {
	return &ConfigHandler{
		store: store,
	}
}

// Get returns the currently active configuration
func (p *ConfigHandler) Get(c echo.Context) error {
	cfg := p.store.GetActive()
	if cfg == nil {
		return api.Err(http.StatusNotFound, "", "no active configuration")
	}

	data := api.Config{}
	data.Unmarshal(cfg)

	return c.JSON(http.StatusOK, data)
}

package api

import (
	"net/http"
	"testing"

	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/mock"
	"github.com/datarhei/ffstats/source"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func getDummySourcesRouter(t *testing.T) (*echo.Echo, source.Registry) {
	router := mock.DummyEcho()

	registry := mock.DummyRegistry(nil, nil)
	t.Cleanup(registry.Stop)

	handler := NewSources(registry)

	router.Add("GET", "/", handler.List)
	router.Add("GET", "/:id", handler.Get)
	router.Add("DELETE", "/:id", handler.Delete)

	return router, registry
}

func TestSourcesList(t *testing.T) {
	router, _ := getDummySourcesRouter(t)

	response := mock.Request(t, http.StatusOK, router, "GET", "/", nil)

	mock.Validate(t, &[]api.Source{}, response.Data)

	list := response.Data.([]interface{})
	require.Len(t, list, 2)
	require.Equal(t, "http:encoder", list[0].(map[string]interface{})["id"])

	response = mock.Request(t, http.StatusOK, router, "GET", "/?filter=udp:*", nil)

	list = response.Data.([]interface{})
	require.Len(t, list, 1)

	src := list[0].(map[string]interface{})
	require.Equal(t, "udp:127.0.0.1:40000", src["id"])
	require.Equal(t, "finished", src["state"])

	mock.Request(t, http.StatusBadRequest, router, "GET", "/?filter=udp:%5B", nil)
}

func TestSourcesGet(t *testing.T) {
	router, _ := getDummySourcesRouter(t)

	response := mock.Request(t, http.StatusOK, router, "GET", "/http:encoder", nil)

	mock.Validate(t, &api.Source{}, response.Data)

	src := response.Data.(map[string]interface{})
	require.Equal(t, "http:encoder", src["id"])
	require.Equal(t, "running", src["state"])

	stats := src["stats"].(map[string]interface{})
	require.Equal(t, 25.0, stats["frame"])

	last := src["last"].(map[string]interface{})
	require.Len(t, last["total_size"], 2)

	mock.Request(t, http.StatusNotFound, router, "GET", "/http:unknown", nil)
}

func TestSourcesDelete(t *testing.T) {
	router, registry := getDummySourcesRouter(t)

	mock.Request(t, http.StatusOK, router, "DELETE", "/http:encoder", nil)
	mock.Request(t, http.StatusNotFound, router, "DELETE", "/http:encoder", nil)

	_, err := registry.Get("http:encoder")
	require.ErrorIs(t, err, source.ErrNotFound)
}

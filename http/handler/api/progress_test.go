package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/mock"
	"github.com/datarhei/ffstats/source"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const progressBody = `frame=25
fps=25.00
total_size=1024
out_time_us=1000000
dup_frames=0
drop_frames=0
speed=1.00x
progress=continue
frame=50
fps=25.00
total_size=2048
out_time_us=2000000
dup_frames=0
drop_frames=1
speed=1.00x
progress=end
`

func getDummyProgressRouter(t *testing.T) (*echo.Echo, source.Registry) {
	router := mock.DummyEcho()

	registry := source.New(source.Config{})
	t.Cleanup(registry.Stop)

	handler := NewProgress(ProgressConfig{
		Registry: registry,
	})

	router.Add("POST", "/:name", handler.Ingest)

	return router, registry
}

func TestProgressIngest(t *testing.T) {
	router, registry := getDummyProgressRouter(t)

	response := mock.RequestWithContentType(t, http.StatusOK, router, "POST", "/encoder", strings.NewReader(progressBody), "text/plain")

	mock.Validate(t, &api.ProgressResult{}, response.Data)

	result := response.Data.(map[string]interface{})
	require.Equal(t, "http:encoder", result["source"])
	require.Equal(t, 2.0, result["blocks"])
	require.Equal(t, true, result["end"])

	src, err := registry.Get("http:encoder")
	require.NoError(t, err)
	require.Equal(t, source.StateFinished, src.State)
	require.Equal(t, uint64(50), src.Stats.Frame)
	require.Equal(t, uint64(2000), src.Stats.OutTimeMs)
	require.Equal(t, uint64(1), src.Stats.DropFrames)
	require.Equal(t, 25.0, src.Reported.FPS)
}

func TestProgressIngestUnterminated(t *testing.T) {
	router, registry := getDummyProgressRouter(t)

	response := mock.RequestWithContentType(t, http.StatusOK, router, "POST", "/encoder", strings.NewReader("frame=10\ntotal_size=100"), "text/plain")

	result := response.Data.(map[string]interface{})
	require.Equal(t, 1.0, result["blocks"])
	require.Equal(t, false, result["end"])

	src, err := registry.Get("http:encoder")
	require.NoError(t, err)
	require.Equal(t, uint64(100), src.Stats.TotalSize)
}

func TestProgressIngestInvalidName(t *testing.T) {
	router, registry := getDummyProgressRouter(t)

	mock.RequestWithContentType(t, http.StatusBadRequest, router, "POST", "/bad%20name", strings.NewReader(progressBody), "text/plain")
	mock.RequestWithContentType(t, http.StatusBadRequest, router, "POST", "/"+strings.Repeat("a", 65), strings.NewReader(progressBody), "text/plain")

	list, err := registry.List("")
	require.NoError(t, err)
	require.Empty(t, list)

	mock.RequestWithContentType(t, http.StatusOK, router, "POST", "/"+strings.Repeat("a", 64), strings.NewReader(progressBody), "text/plain")
}

func TestProgressIngestLongLine(t *testing.T) {
	router, registry := getDummyProgressRouter(t)

	body := strings.Repeat("x", 64*1024) + "\n" + progressBody

	response := mock.RequestWithContentType(t, http.StatusOK, router, "POST", "/encoder", strings.NewReader(body), "text/plain")

	result := response.Data.(map[string]interface{})
	require.Equal(t, 2.0, result["blocks"])

	src, err := registry.Get("http:encoder")
	require.NoError(t, err)
	require.Equal(t, uint64(50), src.Stats.Frame)
}

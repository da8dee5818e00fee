package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/datarhei/ffstats/config/store"
	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/prometheus"
	"github.com/datarhei/ffstats/source"

	"github.com/stretchr/testify/require"
)

type testServer struct {
	Server
	registry source.Registry
	history  history.Store
}

func newTestServer(t *testing.T) *testServer {
	events := event.NewPubSub()
	t.Cleanup(events.Close)

	historyStore := history.NewMemoryStore(10)

	registry := source.New(source.Config{
		Events:  events,
		History: historyStore,
	})
	t.Cleanup(registry.Stop)

	metrics := prometheus.New()
	require.NoError(t, metrics.Register(prometheus.NewSourcesCollector(registry)))

	s, err := NewServer(Config{
		Logger:     log.New("HTTP"),
		LogBuffer:  log.NewBufferWriter(log.Linfo, 10),
		Registry:   registry,
		History:    historyStore,
		Events:     events,
		Prometheus: metrics,
		Config:     store.NewDummy(),
		Name:       "test",
		ID:         "id",
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)

	return &testServer{
		Server:   s,
		registry: registry,
		history:  historyStore,
	}
}

func (s *testServer) request(t *testing.T, method, path string, body io.Reader) (int, string) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)

	s.ServeHTTP(w, req)

	data, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)

	return w.Code, string(data)
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	code, body := s.request(t, "GET", "/ping", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "pong", body)

	code, body = s.request(t, "GET", "/api", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"name":"test"`)

	code, body = s.request(t, "GET", "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "[]", strings.TrimSpace(body))

	code, _ = s.request(t, "GET", "/api/v1/sources/http:nope", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = s.request(t, "GET", "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.request(t, "GET", "/api/v1/log", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.request(t, "GET", "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.request(t, "GET", "/api/v1/unknown", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestServerProgress(t *testing.T) {
	s := newTestServer(t)

	body := "frame=50\ntotal_size=2048\nout_time_us=2000000\ndup_frames=0\ndrop_frames=0\nprogress=continue\n" +
		"frame=100\ntotal_size=4096\nout_time_us=4000000\ndup_frames=0\ndrop_frames=2\nprogress=end\n"

	code, _ := s.request(t, "POST", "/api/v1/progress/encoder", strings.NewReader(body))
	require.Equal(t, http.StatusOK, code)

	code, data := s.request(t, "GET", "/api/v1/sources/http:encoder", nil)
	require.Equal(t, http.StatusOK, code)

	src := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(data), &src))
	require.Equal(t, "finished", src["state"])
	require.Equal(t, 100.0, src["stats"].(map[string]interface{})["frame"])

	entries, err := s.history.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "http:encoder", entries[0].Source)

	code, data = s.request(t, "GET", "/api/v1/history/"+entries[0].ID, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, data, `"source":"http:encoder"`)

	code, data = s.request(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, data, `ffstats_source_frames{source="http:encoder"} 100`)

	code, _ = s.request(t, "DELETE", "/api/v1/sources/http:encoder", nil)
	require.Equal(t, http.StatusOK, code)

	_, err = s.registry.Get("http:encoder")
	require.ErrorIs(t, err, source.ErrNotFound)
}

func TestServerWithoutOptionalComponents(t *testing.T) {
	s, err := NewServer(Config{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/sources", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/log", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

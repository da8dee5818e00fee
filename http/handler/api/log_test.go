package api

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datarhei/ffstats/encoding/json"

	"github.com/datarhei/ffstats/http/mock"
	"github.com/datarhei/ffstats/log"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func getDummyLogRouter(buffer log.BufferWriter) *echo.Echo {
	router := mock.DummyEcho()

	handler := NewLog(buffer, nil)

	router.Add("GET", "/", handler.Log)

	return router
}

func TestLogEmpty(t *testing.T) {
	router := getDummyLogRouter(nil)

	response := mock.Request(t, http.StatusOK, router, "GET", "/", nil)

	mock.Validate(t, []string{}, response.Data)
}

func TestLog(t *testing.T) {
	buffer := log.NewBufferWriter(log.Linfo, 10)

	logger := log.New("Sources").WithOutput(buffer)
	logger.Info().WithField("source", "http:a").Log("New source")

	router := getDummyLogRouter(buffer)

	response := mock.Request(t, http.StatusOK, router, "GET", "/", nil)

	lines := response.Data.([]interface{})
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "New source")

	response = mock.Request(t, http.StatusOK, router, "GET", "/?format=raw", nil)

	raw := response.Data.([]interface{})
	require.Len(t, raw, 1)

	line := raw[0].(map[string]interface{})
	require.Equal(t, "New source", line["message"])
	require.Equal(t, "Sources", line["component"])
	require.Equal(t, "http:a", line["source"])
}

func TestLogStream(t *testing.T) {
	events := log.NewChannelWriter()
	defer events.Close()

	router := mock.DummyEcho()

	handler := NewLog(nil, events)

	router.Add("GET", "/stream", handler.Stream)

	server := httptest.NewServer(router)
	defer server.Close()

	res, err := http.Get(server.URL + "/stream?component=udp")
	require.NoError(t, err)
	defer res.Body.Close()

	reader := bufio.NewReader(res.Body)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "{\"event\":\"keepalive\"}\n", line)

	log.New("HTTP").WithOutput(events).Info().Log("Ignored")
	log.New("UDP").WithOutput(events).Warn().WithField("client", "127.0.0.1:5000").Log("Truncated datagram")

	line, err = reader.ReadString('\n')
	require.NoError(t, err)

	data := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(line), &data))
	require.Equal(t, "UDP", data["component"])
	require.Equal(t, "WARN", data["level"])
	require.Equal(t, "Truncated datagram", data["message"])
	require.Equal(t, "127.0.0.1:5000", data["client"])
}

func TestLogStreamUnavailable(t *testing.T) {
	router := mock.DummyEcho()

	handler := NewLog(nil, nil)

	router.Add("GET", "/stream", handler.Stream)

	mock.Request(t, http.StatusNotImplemented, router, "GET", "/stream", nil)
}

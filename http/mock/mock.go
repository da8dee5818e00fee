// Package mock provides helpers for testing the HTTP handlers.
package mock

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/datarhei/ffstats/encoding/json"
	"github.com/datarhei/ffstats/event"
	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/history"
	"github.com/datarhei/ffstats/http/errorhandler"
	"github.com/datarhei/ffstats/http/validator"
	"github.com/datarhei/ffstats/source"
	"github.com/datarhei/ffstats/stats"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

// DummyRegistry returns a registry with a running and a finished source.
// The finished source has been added to the history store.
func DummyRegistry(events source.Publisher, store history.Store) source.Registry {
	r := source.New(source.Config{
		Events:  events,
		History: store,
	})

	r.Update("http:encoder", progress.Block{
		Stats: stats.Stats{Frame: 25, TotalSize: 1024, OutTimeMs: 1000},
		Data:  "frame=25\ntotal_size=1024\nout_time_ms=1000000",
	})

	r.Update("udp:127.0.0.1:40000", progress.Block{
		Stats: stats.Stats{Frame: 100, TotalSize: 4096, OutTimeMs: 4000, DropFrames: 1},
		Data:  "frame=100\ntotal_size=4096\nout_time_ms=4000000\ndrop_frames=1",
		End:   true,
	})

	return r
}

func DummyHistory(n int) history.Store {
	store := history.NewMemoryStore(0)

	start := time.Now().Add(-time.Hour)

	for i := 0; i < n; i++ {
		store.Add(history.Entry{
			ID:        string(rune('a' + i)),
			Source:    "http:encoder",
			CreatedAt: start,
			EndedAt:   start.Add(time.Duration(i+1) * time.Minute),
			Stats:     stats.Stats{Frame: uint64(i * 100)},
			Blocks:    uint64(i),
		})
	}

	return store
}

func DummyEvents() *event.PubSub {
	return event.NewPubSub()
}

func DummyEcho() *echo.Echo {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = errorhandler.HTTPErrorHandler
	router.Logger.SetOutput(io.Discard)
	router.Validator = validator.New()

	return router
}

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Raw     []byte
	Data    interface{}
}

func Request(t require.TestingT, httpstatus int, router *echo.Echo, method, path string, data io.Reader) *Response {
	return RequestWithContentType(t, httpstatus, router, method, path, data, "application/json")
}

func RequestWithContentType(t require.TestingT, httpstatus int, router *echo.Echo, method, path string, data io.Reader, contentType string) *Response {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, data)
	if data != nil {
		req.Header.Add("Content-Type", contentType)
	}
	router.ServeHTTP(w, req)

	response := CheckResponse(t, w.Result())

	require.Equal(t, httpstatus, w.Code, string(response.Raw))

	return response
}

func CheckResponse(t require.TestingT, res *http.Response) *Response {
	response := &Response{
		Code: res.StatusCode,
	}

	body, err := io.ReadAll(res.Body)
	require.Equal(t, nil, err)

	res.Body.Close()

	response.Raw = body

	if strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		err := json.Unmarshal(body, &response.Data)
		require.Equal(t, nil, err)
	} else {
		response.Data = body
	}

	if response.Code != http.StatusOK {
		if data, ok := response.Data.(map[string]interface{}); ok {
			if message, ok := data["message"].(string); ok {
				response.Message = message
			}
		}
	}

	return response
}

// Validate checks data against the JSON schema of datatype.
func Validate(t require.TestingT, datatype, data interface{}) bool {
	schema, err := jsonschema.Reflect(datatype).MarshalJSON()
	require.NoError(t, err)

	schemaLoader := gojsonschema.NewStringLoader(string(schema))
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	require.Equal(t, nil, err)
	require.Equal(t, true, result.Valid(), result.Errors())

	return true
}

// Decode unmarshals the raw body of the response into v.
func Decode(response *Response, v interface{}) error {
	return json.Unmarshal(response.Raw, v)
}

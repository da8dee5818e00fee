package api

import (
	"io"
	"net/http"

	"github.com/datarhei/ffstats/ffmpeg/progress"
	"github.com/datarhei/ffstats/http/api"
	"github.com/datarhei/ffstats/http/handler/util"
	"github.com/datarhei/ffstats/log"
	"github.com/datarhei/ffstats/source"

	"github.com/labstack/echo/v4"
)

// The ProgressHandler type provides a handler for ffmpeg processes that send
// their progress with -progress http://...
type ProgressHandler struct {
	registry      source.Registry
	outTimeMsIsMs bool
	logger        log.Logger
}

type ProgressConfig struct {
	Registry                source.Registry
	OutTimeMsIsMilliseconds bool
	Logger                  log.Logger
}

// NewProgress returns a new Progress type
func NewProgress(config ProgressConfig) *ProgressHandler {
	h := &ProgressHandler{
		registry:      config.Registry,
		outTimeMsIsMs: config.OutTimeMsIsMilliseconds,
		logger:        config.Logger,
	}

	if h.logger == nil {
		h.logger = log.New("")
	}

	return h
}

type progressRequest struct {
	Name string `json:"name" validate:"required,max=64,sourcename"`
}

// Ingest reads the progress blocks from the request body until the client
// closes the request. ffmpeg sends the body chunked, each block is handled
// as soon as it arrives.
func (h *ProgressHandler) Ingest(c echo.Context) error {
	req := progressRequest{
		Name: util.PathParam(c, "name"),
	}

	if err := c.Validate(&req); err != nil {
		return api.Err(http.StatusBadRequest, "", "invalid source name: %s", err.Error())
	}

	id := source.HTTPID(req.Name)

	result := api.ProgressResult{
		Source: id,
	}

	update := func(block progress.Block) {
		h.registry.Update(id, block)

		result.Blocks++
		if block.End {
			result.End = true
		}
	}

	parser := progress.New(progress.Config{
		OutTimeMsIsMilliseconds: h.outTimeMsIsMs,
		OnBlock:                 update,
		Logger:                  h.logger.WithField("source", id),
	})

	_, err := io.Copy(parser, c.Request().Body)

	if block, ok := parser.Flush(); ok {
		update(block)
	}

	if err != nil {
		h.logger.Warn().WithError(err).WithField("source", id).Log("Reading progress failed")
		return api.Err(http.StatusBadRequest, "", "reading the body failed: %s", err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

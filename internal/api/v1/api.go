// internal/api/v1/api.go
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openvote/voteapi/internal/conf"
	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/datasync"
	"github.com/openvote/voteapi/internal/identity"
	"github.com/openvote/voteapi/internal/logging"
	"github.com/openvote/voteapi/internal/results"
	"github.com/openvote/voteapi/internal/voting"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	DS         datastore.Interface
	Settings   *conf.Settings
	Votes      *voting.Service
	Aggregator *results.Aggregator
	Sync       *datasync.Service
	Hasher     *identity.Hasher

	logger *slog.Logger
}

// ErrorResponse is the JSON body returned for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	votes *voting.Service, aggregator *results.Aggregator, sync *datasync.Service,
	hasher *identity.Hasher) *Controller {

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		Votes:      votes,
		Aggregator: aggregator,
		Sync:       sync,
		Hasher:     hasher,
		logger:     logging.ForService("api"),
	}

	c.Group = e.Group("/api/v1")
	c.initVoteRoutes()
	c.initResultsRoutes()
	c.initCategoryRoutes()
	c.initAdminRoutes()
	c.initHealthRoutes()

	if settings.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return c
}

// HandleError maps core validation errors onto HTTP status codes and logs
// everything else as a server error.
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, voting.ErrInvalidFingerprint),
		errors.Is(err, voting.ErrInvalidChoiceShape),
		errors.Is(err, voting.ErrInvalidTierIndex),
		errors.Is(err, voting.ErrItemNotInCategory),
		errors.Is(err, voting.ErrCategoryInactive):
		code = http.StatusBadRequest
	case errors.Is(err, voting.ErrCategoryNotFound),
		errors.Is(err, voting.ErrVoteNotFound):
		code = http.StatusNotFound
	case errors.Is(err, voting.ErrDuplicateVote),
		errors.Is(err, voting.ErrCommentExists):
		code = http.StatusConflict
	case errors.Is(err, voting.ErrSuspiciousActivity):
		code = http.StatusTooManyRequests
	}

	if code == http.StatusInternalServerError {
		c.logger.Error("request failed",
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"error", err)
		return ctx.JSON(code, ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(code, ErrorResponse{Error: err.Error()})
}

// internal/api/v1/results.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/identity"
	"github.com/openvote/voteapi/internal/voting"
)

// initResultsRoutes registers the results endpoint.
func (c *Controller) initResultsRoutes() {
	c.Group.GET("/results/:categoryID", c.GetResults)
}

// GetResults handles GET /api/v1/results/:categoryID. Categories with
// private_results enabled only reveal results to fingerprints that have
// already voted.
func (c *Controller) GetResults(ctx echo.Context) error {
	categoryID, err := strconv.ParseUint(ctx.Param("categoryID"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid category id"})
	}

	category, err := c.DS.GetCategory(uint(categoryID))
	if err != nil {
		if datastore.IsNotFound(err) {
			return c.HandleError(ctx, voting.ErrCategoryNotFound)
		}
		return c.HandleError(ctx, err)
	}

	if category.ParseSettings().PrivateResults {
		allowed, err := c.privateResultsAllowed(ctx, category.ID)
		if err != nil {
			return c.HandleError(ctx, err)
		}
		if !allowed {
			return ctx.JSON(http.StatusForbidden,
				ErrorResponse{Error: "results are private until you vote"})
		}
	}

	res, err := c.Aggregator.Compute(category.ID)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, res)
}

// privateResultsAllowed reports whether the caller's fingerprint holds a
// recorded vote in the category.
func (c *Controller) privateResultsAllowed(ctx echo.Context, categoryID uint) (bool, error) {
	fingerprint := ctx.QueryParam("fingerprint")
	if !identity.ValidFingerprint(fingerprint) {
		return false, nil
	}

	if _, err := c.DS.GetVote(categoryID, fingerprint); err != nil {
		if datastore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// internal/api/v1/admin.go
package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/voting"
)

// initAdminRoutes registers the token-guarded admin endpoints.
func (c *Controller) initAdminRoutes() {
	admin := c.Group.Group("/admin", c.adminAuthMiddleware)
	admin.POST("/sync", c.TriggerSync)
	admin.POST("/sync/blocking", c.TriggerSyncBlocking)
	admin.GET("/categories", c.ListAllCategories)
	admin.PUT("/categories/:categoryID", c.UpdateCategory)
	admin.GET("/comments/pending", c.ListPendingComments)
	admin.PUT("/comments/:commentID/approve", c.ModerateComment)
}

// adminAuthMiddleware verifies the X-Admin-Token header against the
// configured peppered token digests.
func (c *Controller) adminAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if len(c.Settings.Security.AdminTokensHashed) == 0 {
			return ctx.JSON(http.StatusInternalServerError,
				ErrorResponse{Error: "admin tokens not configured"})
		}

		token := ctx.Request().Header.Get("X-Admin-Token")
		if token == "" {
			return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid admin token"})
		}

		tokenHash := c.Hasher.HashToken(token)
		for _, valid := range c.Settings.Security.AdminTokensHashed {
			if subtle.ConstantTimeCompare([]byte(tokenHash), []byte(valid)) == 1 {
				return next(ctx)
			}
		}
		return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid admin token"})
	}
}

// TriggerSync handles POST /api/v1/admin/sync, starting a data-file sync
// in the background.
func (c *Controller) TriggerSync(ctx echo.Context) error {
	go func() {
		if _, err := c.Sync.SyncAll(); err != nil {
			c.logger.Error("background sync failed", "error", err)
		}
	}()

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "sync_initiated",
		"message": "Data sync started in background",
	})
}

// TriggerSyncBlocking handles POST /api/v1/admin/sync/blocking, running
// the sync inline and returning its summary.
func (c *Controller) TriggerSyncBlocking(ctx echo.Context) error {
	summary, err := c.Sync.SyncAll()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "completed",
		"results": summary,
	})
}

// ListAllCategories handles GET /api/v1/admin/categories, including
// inactive categories.
func (c *Controller) ListAllCategories(ctx echo.Context) error {
	categories, err := c.DS.GetCategories(false)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	response := CategoryListResponse{Categories: make([]CategoryResponse, 0, len(categories))}
	for i := range categories {
		response.Categories = append(response.Categories, categoryResponse(&categories[i], nil))
	}
	response.Total = len(response.Categories)
	return ctx.JSON(http.StatusOK, response)
}

// UpdateCategory handles PUT /api/v1/admin/categories/:categoryID,
// toggling the active flag.
func (c *Controller) UpdateCategory(ctx echo.Context) error {
	categoryID, err := strconv.ParseUint(ctx.Param("categoryID"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid category id"})
	}

	active, err := strconv.ParseBool(ctx.QueryParam("is_active"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "is_active must be true or false"})
	}

	if err := c.DS.SetCategoryActive(uint(categoryID), active); err != nil {
		if datastore.IsNotFound(err) {
			return c.HandleError(ctx, voting.ErrCategoryNotFound)
		}
		return c.HandleError(ctx, err)
	}

	message := "Category deactivated"
	if active {
		message = "Category activated"
	}
	return ctx.JSON(http.StatusOK, map[string]any{"success": true, "message": message})
}

// CommentModeration is one pending comment in the moderation queue.
type CommentModeration struct {
	ID        uint   `json:"id"`
	VoteID    uint   `json:"vote_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ListPendingComments handles GET /api/v1/admin/comments/pending.
func (c *Controller) ListPendingComments(ctx echo.Context) error {
	comments, err := c.DS.GetPendingComments()
	if err != nil {
		return c.HandleError(ctx, err)
	}

	pending := make([]CommentModeration, 0, len(comments))
	for i := range comments {
		pending = append(pending, CommentModeration{
			ID:        comments[i].ID,
			VoteID:    comments[i].VoteID,
			Content:   comments[i].Content,
			CreatedAt: comments[i].CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"comments": pending,
		"total":    len(pending),
	})
}

// ModerateComment handles PUT /api/v1/admin/comments/:commentID/approve.
// approve=true publishes the comment, approve=false deletes it.
func (c *Controller) ModerateComment(ctx echo.Context) error {
	commentID, err := strconv.ParseUint(ctx.Param("commentID"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid comment id"})
	}

	approve := true
	if raw := ctx.QueryParam("approve"); raw != "" {
		approve, err = strconv.ParseBool(raw)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "approve must be true or false"})
		}
	}

	comment, err := c.DS.GetComment(uint(commentID))
	if err != nil {
		if datastore.IsNotFound(err) {
			return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "comment not found"})
		}
		return c.HandleError(ctx, err)
	}

	if approve {
		comment.IsApproved = true
		if err := c.DS.SaveComment(comment); err != nil {
			return c.HandleError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]any{"success": true, "message": "Comment approved"})
	}

	if err := c.DS.DeleteComment(comment.ID); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"success": true, "message": "Comment rejected and deleted"})
}

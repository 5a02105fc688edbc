// internal/api/v1/votes.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openvote/voteapi/internal/identity"
	"github.com/openvote/voteapi/internal/voting"
)

// initVoteRoutes registers the vote submission endpoints.
func (c *Controller) initVoteRoutes() {
	c.Group.POST("/vote", c.SubmitVote)
	c.Group.POST("/vote/upsert", c.UpsertVote)
	c.Group.GET("/vote/status/:categoryID", c.GetVoteStatus)
	c.Group.POST("/comments", c.SubmitComment)
}

// VoteRequest is the submission payload. Choices carries the
// mode-specific layout described by the category's comparison mode.
type VoteRequest struct {
	CategoryID  uint   `json:"category_id"`
	Fingerprint string `json:"fingerprint"`
	Choices     []int  `json:"choices"`
	Comment     string `json:"comment,omitempty"`
}

// VoteResponse acknowledges an accepted submission.
type VoteResponse struct {
	Success bool   `json:"success"`
	VoteID  uint   `json:"vote_id"`
	Message string `json:"message"`
}

// VoteStatusResponse reports whether a voter has voted in a category.
type VoteStatusResponse struct {
	HasVoted bool       `json:"has_voted"`
	VoteID   uint       `json:"vote_id,omitempty"`
	VotedAt  *time.Time `json:"voted_at,omitempty"`
}

// CommentRequest attaches free text to an existing vote.
type CommentRequest struct {
	VoteID  uint   `json:"vote_id"`
	Content string `json:"content"`
}

// SubmitVote handles POST /api/v1/vote.
func (c *Controller) SubmitVote(ctx echo.Context) error {
	var req VoteRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	vote, err := c.Votes.Submit(ctx.Request().Context(), &voting.SubmitRequest{
		CategoryID:  req.CategoryID,
		Fingerprint: req.Fingerprint,
		ClientIP:    identity.ClientIP(ctx.Request()),
		Choices:     req.Choices,
		Comment:     req.Comment,
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, VoteResponse{
		Success: true,
		VoteID:  vote.ID,
		Message: "Vote recorded successfully",
	})
}

// UpsertVote handles POST /api/v1/vote/upsert, the incremental tiering
// path. Choices must be exactly [item_id, tier_index].
func (c *Controller) UpsertVote(ctx echo.Context) error {
	var req VoteRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Choices) != 2 || req.Choices[0] < 0 {
		return c.HandleError(ctx,
			fmt.Errorf("%w: upsert requires exactly [item_id, tier_index]", voting.ErrInvalidChoiceShape))
	}

	vote, err := c.Votes.UpsertTier(ctx.Request().Context(), &voting.UpsertTierRequest{
		CategoryID:  req.CategoryID,
		Fingerprint: req.Fingerprint,
		ClientIP:    identity.ClientIP(ctx.Request()),
		ItemID:      uint(req.Choices[0]),
		TierIndex:   req.Choices[1],
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, VoteResponse{
		Success: true,
		VoteID:  vote.ID,
		Message: "Vote saved",
	})
}

// GetVoteStatus handles GET /api/v1/vote/status/:categoryID.
func (c *Controller) GetVoteStatus(ctx echo.Context) error {
	categoryID, err := strconv.ParseUint(ctx.Param("categoryID"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid category id"})
	}

	vote, err := c.Votes.Status(uint(categoryID), ctx.QueryParam("fingerprint"))
	if err != nil {
		return c.HandleError(ctx, err)
	}

	if vote == nil {
		return ctx.JSON(http.StatusOK, VoteStatusResponse{HasVoted: false})
	}
	votedAt := vote.CreatedAt
	return ctx.JSON(http.StatusOK, VoteStatusResponse{
		HasVoted: true,
		VoteID:   vote.ID,
		VotedAt:  &votedAt,
	})
}

// SubmitComment handles POST /api/v1/comments.
func (c *Controller) SubmitComment(ctx echo.Context) error {
	var req CommentRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "comment content is required"})
	}

	if err := c.Votes.SubmitComment(req.VoteID, req.Content); err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Comment submitted for approval",
	})
}

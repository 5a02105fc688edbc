// internal/api/v1/categories.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/voting"
)

// initCategoryRoutes registers the public category listing endpoints.
func (c *Controller) initCategoryRoutes() {
	c.Group.GET("/categories", c.ListCategories)
	c.Group.GET("/categories/:categoryID", c.GetCategory)
	c.Group.GET("/categories/:categoryID/items", c.GetCategoryItems)
}

// ItemResponse describes one votable item.
type ItemResponse struct {
	ID       uint              `json:"id"`
	Name     string            `json:"name"`
	ImageURL string            `json:"image_url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CategoryResponse describes one category, with items on detail views.
type CategoryResponse struct {
	ID             uint                     `json:"id"`
	Name           string                   `json:"name"`
	Description    string                   `json:"description,omitempty"`
	ComparisonMode datastore.ComparisonMode `json:"comparison_mode"`
	IsActive       bool                     `json:"is_active"`
	Items          []ItemResponse           `json:"items"`
}

// CategoryListResponse is the category index.
type CategoryListResponse struct {
	Categories []CategoryResponse `json:"categories"`
	Total      int                `json:"total"`
}

// ListCategories handles GET /api/v1/categories. Inactive categories are
// hidden unless active_only=false is passed.
func (c *Controller) ListCategories(ctx echo.Context) error {
	activeOnly := ctx.QueryParam("active_only") != "false"

	categories, err := c.DS.GetCategories(activeOnly)
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

// GetCategory handles GET /api/v1/categories/:categoryID.
func (c *Controller) GetCategory(ctx echo.Context) error {
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

	items, err := c.DS.GetCategoryItems(category.ID)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, categoryResponse(category, items))
}

// GetCategoryItems handles GET /api/v1/categories/:categoryID/items.
func (c *Controller) GetCategoryItems(ctx echo.Context) error {
	categoryID, err := strconv.ParseUint(ctx.Param("categoryID"), 10, 32)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid category id"})
	}

	items, err := c.DS.GetCategoryItems(uint(categoryID))
	if err != nil {
		return c.HandleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, itemResponses(items))
}

func categoryResponse(category *datastore.Category, items []datastore.Item) CategoryResponse {
	return CategoryResponse{
		ID:             category.ID,
		Name:           category.Name,
		Description:    category.Description,
		ComparisonMode: category.ComparisonMode,
		IsActive:       category.IsActive,
		Items:          itemResponses(items),
	}
}

func itemResponses(items []datastore.Item) []ItemResponse {
	responses := make([]ItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, ItemResponse{
			ID:       items[i].ID,
			Name:     items[i].Name,
			ImageURL: items[i].ImageURL,
			Metadata: items[i].ParseMetadata(),
		})
	}
	return responses
}

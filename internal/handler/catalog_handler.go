package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/service"
	"github.com/sentinnell/analytics_api/internal/utils"
)

// CatalogHandler exposes upstream catalog search and curation.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// Search queries the upstream catalog and ranks the results.
func (h *CatalogHandler) Search(c *gin.Context) {
	var req service.CatalogSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.ErrInvalidRequest.Error(), "Invalid request body")
		return
	}

	res, err := h.catalogService.Search(c.Request.Context(), req)
	if err != nil {
		utils.FromError(c, err, searchErrorMessage(err))
		return
	}
	utils.Success(c, http.StatusOK, "Search completed", res)
}

func searchErrorMessage(err error) string {
	switch utils.ErrorCode(err) {
	case utils.ErrValidation.Error():
		return "Keyword is required"
	case utils.ErrUpstreamNotEnabled.Error():
		return "Catalog search is not configured"
	case utils.ErrUpstream.Error():
		return "Failed to fetch data from the catalog"
	default:
		return "Search failed"
	}
}

// SaveProductRequest is the body of POST /api/products.
type SaveProductRequest struct {
	Product   map[string]interface{} `json:"product" binding:"required"`
	Affiliate *models.AffiliateData  `json:"affiliate"`
}

// SaveProduct curates one catalog record into the store.
func (h *CatalogHandler) SaveProduct(c *gin.Context) {
	var req SaveProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, utils.ErrInvalidRequest.Error(), "Request must contain a product object")
		return
	}

	res, err := h.catalogService.Save(c.Request.Context(), req.Product, req.Affiliate)
	if err != nil {
		utils.FromError(c, err, "Failed to save product")
		return
	}
	status, msg := http.StatusOK, "Product updated"
	if res.Created {
		status, msg = http.StatusCreated, "Product created"
	}
	utils.Success(c, status, msg, res)
}

// UpdateCategoriesRequest is the body of POST /api/update-categories.
type UpdateCategoriesRequest struct {
	Products []models.CategoryUpdate `json:"products" binding:"required"`
}

// UpdateCategories reassigns stored products to categories.
func (h *CatalogHandler) UpdateCategories(c *gin.Context) {
	var req UpdateCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Products) == 0 {
		utils.Error(c, http.StatusBadRequest, utils.ErrInvalidRequest.Error(), "Request must contain a list of products")
		return
	}

	res, err := h.catalogService.UpdateCategories(c.Request.Context(), req.Products)
	if err != nil {
		utils.FromError(c, err, "Failed to update categories")
		return
	}
	utils.Success(c, http.StatusOK, "Categories processed", res)
}

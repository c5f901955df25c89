package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentinnell/analytics_api/internal/service"
	"github.com/sentinnell/analytics_api/internal/utils"
)

// ProductHandler serves stored products.
type ProductHandler struct {
	productService *service.ProductService
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// GetProducts returns stored products, newest first.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	products, err := h.productService.ListAll(c.Request.Context())
	if err != nil {
		utils.FromError(c, err, "Failed to get products")
		return
	}
	utils.Success(c, http.StatusOK, "Products retrieved successfully", gin.H{
		"products": products,
	})
}

// SearchProducts filters stored products by keyword and category.
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	params := service.SearchParams{
		Keyword:  c.Query("keyword"),
		SortType: queryInt(c, "sortType", service.SortTypeRecent),
		Limit:    queryInt(c, "limit", 0),
		Page:     queryInt(c, "page", 1),
	}
	if v := c.Query("category"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			utils.Error(c, http.StatusBadRequest, utils.ErrInvalidRequest.Error(), "category must be a positive integer")
			return
		}
		params.CategoryID = n
	}

	res, err := h.productService.Search(c.Request.Context(), params)
	if err != nil {
		utils.FromError(c, err, "Failed to search products")
		return
	}
	utils.SuccessWithPagination(c, http.StatusOK, "Products retrieved successfully", gin.H{
		"products": res.Products,
	}, res.Page, res.Limit, len(res.Products), res.HasNextPage)
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

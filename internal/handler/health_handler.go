package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinnell/analytics_api/internal/service"
	"github.com/sentinnell/analytics_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides health endpoint.
type HealthHandler struct {
	productService *service.ProductService
	env            string
	readOnly       bool
	catalogEnabled bool
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(productService *service.ProductService, env string, readOnly, catalogEnabled bool) *HealthHandler {
	return &HealthHandler{
		productService: productService,
		env:            env,
		readOnly:       readOnly,
		catalogEnabled: catalogEnabled,
	}
}

// GetHealth responds with service and store status. A store that cannot be
// read reports degraded with 503.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	storeStatus := "connected"
	count, err := h.productService.Count(c.Request.Context())
	if err != nil {
		storeStatus = utils.ErrorCode(err)
	}

	status, code := "healthy", http.StatusOK
	if err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	utils.Success(c, code, "Service is "+status, gin.H{
		"status":   status,
		"env":      h.env,
		"readOnly": h.readOnly,
		"uptime":   int(time.Since(startTime).Seconds()),
		"catalog":  h.catalogEnabled,
		"store": gin.H{
			"status":   storeStatus,
			"products": count,
		},
	})
}

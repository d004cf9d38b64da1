package controllers

import (
	"context"
	"net/http"
	"time"

	apperrors "storefront-gateway/common/errors"
	"storefront-gateway/common/logger"
	"storefront-gateway/common/middleware"
	"storefront-gateway/models"
	"storefront-gateway/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger checks that the database answers.
type Pinger func(ctx context.Context) error

// DocumentController handles HTTP requests for every gateway route.
type DocumentController struct {
	documentService services.DocumentService
	ping            Pinger
}

// NewDocumentController creates a new DocumentController.
func NewDocumentController(svc services.DocumentService, ping Pinger) *DocumentController {
	return &DocumentController{documentService: svc, ping: ping}
}

// Upsert returns the handler for POST /<route> of one binding.
func (dc *DocumentController) Upsert(b models.Binding) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res, err := dc.documentService.Upsert(ctx.Request.Context(), b, middleware.Body(ctx))
		if err != nil {
			apperrors.Respond(ctx, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		ctx.JSON(status, gin.H{"message": res.Message})
	}
}

// CreateCart handles POST /shoppingCart
func (dc *DocumentController) CreateCart(ctx *gin.Context) {
	msg, err := dc.documentService.CreateCart(ctx.Request.Context(), middleware.Body(ctx))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListProducts handles GET /product/:productID. The path parameter does not
// narrow the result; every product is returned.
func (dc *DocumentController) ListProducts(ctx *gin.Context) {
	logger.Debug(ctx, "Listing all products", zap.String("ignored_product_id", ctx.Param("productID")))

	body, err := dc.documentService.ListProducts(ctx.Request.Context())
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Health handles GET /health
func (dc *DocumentController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthTimeout)
	defer cancel()

	if dc.ping == nil || dc.ping(pingCtx) != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "DEGRADED", "mongo": "down"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "OK", "mongo": "up"})
}

package routes

import (
	"fmt"
	"net/http"
	"time"

	"storefront-gateway/common/logger"
	"storefront-gateway/common/middleware"
	"storefront-gateway/controllers"
	"storefront-gateway/models"
	awspkg "storefront-gateway/pkg/aws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures the shared middleware chain.
type Options struct {
	ServiceName    string
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Metrics        *awspkg.MetricsClient
	Logger         *zap.Logger
}

// NewRouter builds the engine with every middleware and route. CORS runs
// before body parsing so preflights are answered without reading a body.
func NewRouter(dc *controllers.DocumentController, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	// trailing-slash paths are served directly so they get the full chain
	r.RedirectTrailingSlash = false
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		middleware.RequestLogger(opts.Logger),
		middleware.MetricsMiddleware(opts.Metrics, opts.ServiceName),
		middleware.SecurityHeaders(),
		middleware.CORSMiddleware(opts.AllowedOrigins),
		middleware.Timeout(opts.RequestTimeout),
		middleware.JSONBody(opts.MaxBodyBytes),
	)

	RegisterDocumentRoutes(r, dc)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": fmt.Sprintf("Cannot %s %s", c.Request.Method, c.Request.URL.Path),
		})
	})

	return r
}

// RegisterDocumentRoutes sets up the gateway routes. Every path also
// matches with a trailing slash.
func RegisterDocumentRoutes(r gin.IRoutes, dc *controllers.DocumentController) {
	for _, b := range models.Bindings() {
		handle(r, http.MethodPost, "/"+b.Route, dc.Upsert(b))
	}
	handle(r, http.MethodPost, "/"+models.ShoppingCartRoute, dc.CreateCart)
	handle(r, http.MethodGet, "/product/:productID", dc.ListProducts)

	handle(r, http.MethodGet, "/health", dc.Health)
}

func handle(r gin.IRoutes, method, path string, h gin.HandlerFunc) {
	r.Handle(method, path, h)
	r.Handle(method, path+"/", h)
}

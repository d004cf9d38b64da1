package routes_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "storefront-gateway/common/errors"
	"storefront-gateway/common/middleware"
	"storefront-gateway/controllers"
	"storefront-gateway/models"
	"storefront-gateway/routes"
	"storefront-gateway/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubService struct {
	calls int
}

func (s *stubService) Upsert(context.Context, models.Binding, []byte) (*services.UpsertResult, error) {
	s.calls++
	return &services.UpsertResult{Created: true, Message: "created"}, nil
}

func (s *stubService) CreateCart(context.Context, []byte) (string, error) {
	s.calls++
	return models.CartCreatedMessage, nil
}

func (s *stubService) ListProducts(context.Context) ([]byte, error) {
	s.calls++
	return nil, apperrors.ErrDatabaseOperation
}

func newTestRouter(svc services.DocumentService, origins string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	dc := controllers.NewDocumentController(svc, func(context.Context) error { return nil })
	return routes.NewRouter(dc, routes.Options{
		ServiceName:    "storefront-gateway",
		AllowedOrigins: middleware.ParseOrigins(origins),
		MaxBodyBytes:   1024,
		RequestTimeout: time.Second,
	})
}

func serve(r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestPreflight_AnyPath(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, "*")

	for _, path := range []string{"/product", "/shoppingCart", "/does/not/exist"} {
		w := serve(r, http.MethodOptions, path, "application/json", `{not json`)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assertCORS(t, w)
	}
	assert.Zero(t, svc.calls)
}

func TestMalformedJSON(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, "")

	w := serve(r, http.MethodPost, "/product", "application/json", `{"productID":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Invalid JSON payload."}`, w.Body.String())
	assertCORS(t, w)
	assert.Zero(t, svc.calls)
}

func TestScalarBodyRejected(t *testing.T) {
	r := newTestRouter(&stubService{}, "")

	w := serve(r, http.MethodPost, "/billing", "application/json", `"Ada"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBodyTooLarge(t *testing.T) {
	r := newTestRouter(&stubService{}, "")

	body := `{"Name":"` + strings.Repeat("a", 2048) + `"}`
	w := serve(r, http.MethodPost, "/billing", "application/json", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assertCORS(t, w)
}

func TestEveryRouteIsRegistered(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, "")

	for _, path := range []string{"/product", "/shopper", "/shipping", "/billing", "/shoppingCart"} {
		w := serve(r, http.MethodPost, path, "application/json", `{}`)
		assert.Equal(t, http.StatusCreated, w.Code, path)
		assertCORS(t, w)
	}

	w := serve(r, http.MethodGet, "/product/42", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Error during database operation."}`, w.Body.String())
	assertCORS(t, w)

	w = serve(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrailingSlashIsServedDirectly(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, "")

	for _, path := range []string{"/product/", "/shopper/", "/shipping/", "/billing/", "/shoppingCart/"} {
		w := serve(r, http.MethodPost, path, "application/json", `{}`)
		assert.Equal(t, http.StatusCreated, w.Code, path)
		assert.Empty(t, w.Header().Get("Location"), path)
		assertCORS(t, w)
	}
	assert.Equal(t, 5, svc.calls)

	w := serve(r, http.MethodGet, "/product/42/", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assertCORS(t, w)

	w = serve(r, http.MethodGet, "/health/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assertCORS(t, w)
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(&stubService{}, "")

	w := serve(r, http.MethodGet, "/orders", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Cannot GET /orders"}`, w.Body.String())
	assertCORS(t, w)
}

func TestSecurityAndRequestIDHeaders(t *testing.T) {
	r := newTestRouter(&stubService{}, "")

	req := httptest.NewRequest(http.MethodPost, "/product", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestOriginAllowlist(t *testing.T) {
	r := newTestRouter(&stubService{}, "https://shop.example.com, https://admin.example.com/")

	req := httptest.NewRequest(http.MethodOptions, "/product", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodOptions, "/product", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/handlers"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
)

type testEnv struct {
	app      *fiber.App
	auth     *services.AuthService
	products *repositories.GORMProductRepository
	seeded   []models.Product
}

// setupApp sets up a Fiber app backed by an in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	db, err := repositories.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := logging.Discard()
	tx := repositories.NewGORMTransactor(db)
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	authService := services.NewAuthService(userRepo, "test_jwt_secret", time.Hour, log)
	require.NoError(t, authService.EnsureAdmin(context.Background(), adminEmail, adminPassword))

	app := handlers.NewApp(handlers.Deps{
		Auth:     authService,
		Products: services.NewProductService(productRepo, tx),
		Orders:   services.NewOrderService(orderRepo, productRepo, tx, log),
		Users:    services.NewUserService(userRepo, log),
		Log:      log,
	})

	env := &testEnv{app: app, auth: authService, products: productRepo}
	env.seeded = seedProductsForTest(t, productRepo)
	return env
}

// seedProductsForTest populates the product repository for tests.
func seedProductsForTest(t *testing.T, repo repositories.ProductRepository) []models.Product {
	t.Helper()
	products := []models.Product{
		{Name: "Ceramic Mug", Description: "Hand glazed", Price: decimal.NewFromInt(300), Stock: 5, Category: "coffee-mugs", IsActive: true},
		{Name: "Steel Bottle", Description: "Keeps water cold", Price: decimal.NewFromInt(100), Stock: 10, Category: "water-bottles", IsActive: true},
	}
	for i := range products {
		require.NoError(t, repo.Create(context.Background(), &products[i]))
	}
	return products
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func orderBody(productID string, quantity int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product": productID, "quantity": quantity}},
		"shippingAddress": map[string]any{
			"name":   "Asha Rao",
			"phone":  "9876543210",
			"street": "12 MG Road",
			"city":   "Bengaluru",
		},
		"notes": "Leave at the door",
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	token := env.register(t, "test@example.com")
	assert.NotEmpty(t, token)

	// Duplicate registration
	status, body := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    "test@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "already exists")

	// Schema validation
	status, body = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "X",
		"email":    "not-an-email",
		"password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Contains(t, body["errors"], "email")
	assert.Contains(t, body["errors"], "password")

	loginToken := env.login(t, "test@example.com", "password123")
	claims, err := env.auth.ValidateToken(loginToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, claims.Role)

	status, body = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "test@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["message"])

	status, body = env.do(t, http.MethodGet, "/api/v1/auth/me", loginToken, nil)
	assert.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "test@example.com", user["email"])
	assert.NotContains(t, user, "password")

	status, _ = env.do(t, http.MethodPut, "/api/v1/auth/profile", loginToken, map[string]any{
		"phone":   "5550100",
		"address": map[string]string{"city": "Pune"},
	})
	assert.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPut, "/api/v1/auth/change-password", loginToken, map[string]string{
		"currentPassword": "nope-nope",
		"newPassword":     "password456",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Current password is incorrect", body["message"])
}

func TestAuthRequired(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/orders/my-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authorization header is required", body["message"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/orders/my-orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	userToken := env.register(t, "user@example.com")
	status, body = env.do(t, http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", body["message"])
}

func TestProductEndpoints(t *testing.T) {
	env := setupApp(t)
	userToken := env.register(t, "user@example.com")
	adminToken := env.login(t, adminEmail, adminPassword)

	// Browsing is public
	status, body := env.do(t, http.MethodGet, "/api/v1/products?sort=price-low", "", nil)
	require.Equal(t, http.StatusOK, status)
	products := body["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, "Steel Bottle", products[0].(map[string]any)["name"])
	assert.EqualValues(t, 2, body["pagination"].(map[string]any)["total"])

	status, body = env.do(t, http.MethodGet, "/api/v1/products?category=coffee-mugs&minPrice=200", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["products"], 1)

	status, body = env.do(t, http.MethodGet, "/api/v1/products/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["categories"], "gifts")

	newProduct := map[string]any{
		"name":        "Leather Purse",
		"description": "Tan leather",
		"price":       799.99,
		"stock":       50,
		"category":    "purses",
		"images":      []map[string]string{{"url": "https://cdn.example.com/purse.jpg", "altText": "purse"}},
	}

	// Unauthenticated and non-admin writes are rejected
	status, _ = env.do(t, http.MethodPost, "/api/v1/products", "", newProduct)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/products", userToken, newProduct)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPost, "/api/v1/products", adminToken, newProduct)
	require.Equal(t, http.StatusCreated, status, body)
	created := body["product"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "Leather Purse", created["name"])
	assert.Equal(t, true, created["isActive"])

	status, body = env.do(t, http.MethodPut, "/api/v1/products/"+id, adminToken, map[string]any{"name": "Leather Purse Pro", "stock": 45})
	require.Equal(t, http.StatusOK, status, body)
	updated := body["product"].(map[string]any)
	assert.Equal(t, "Leather Purse Pro", updated["name"])
	assert.EqualValues(t, 45, updated["stock"])
	assert.EqualValues(t, 799.99, updated["price"])
	assert.Len(t, updated["images"], 1)

	status, body = env.do(t, http.MethodPost, "/api/v1/products/"+id+"/reviews", userToken, map[string]any{"rating": 4, "comment": "Nice"})
	require.Equal(t, http.StatusCreated, status, body)
	status, body = env.do(t, http.MethodPost, "/api/v1/products/"+id+"/reviews", userToken, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "You have already reviewed this product", body["message"])

	status, body = env.do(t, http.MethodGet, "/api/v1/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	fetched := body["product"].(map[string]any)
	assert.EqualValues(t, 1, fetched["numReviews"])
	assert.Len(t, fetched["reviews"], 1)

	status, body = env.do(t, http.MethodDelete, "/api/v1/products/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["message"], "deleted successfully")

	// Verify deletion
	status, _ = env.do(t, http.MethodGet, "/api/v1/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrderLifecycle(t *testing.T) {
	env := setupApp(t)
	mug := env.seeded[0]
	userToken := env.register(t, "buyer@example.com")
	otherToken := env.register(t, "other@example.com")
	adminToken := env.login(t, adminEmail, adminPassword)

	status, body := env.do(t, http.MethodPost, "/api/v1/orders", userToken, orderBody(mug.ID, 2))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Order placed successfully", body["message"])
	order := body["order"].(map[string]any)
	orderID := order["id"].(string)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{12}$`, order["orderNumber"])
	assert.EqualValues(t, 600, order["subtotal"])
	assert.EqualValues(t, 0, order["shippingCost"])
	assert.EqualValues(t, 108, order["tax"])
	assert.EqualValues(t, 708, order["total"])
	assert.Equal(t, "pending", order["orderStatus"])
	assert.Equal(t, "buyer@example.com", order["user"].(map[string]any)["email"])
	item := order["items"].([]any)[0].(map[string]any)
	assert.Equal(t, mug.ID, item["product"])
	assert.Equal(t, "Ceramic Mug", item["name"])

	p, err := env.products.GetByID(context.Background(), mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	status, body = env.do(t, http.MethodGet, "/api/v1/orders/my-orders", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["currentPage"])
	assert.Equal(t, false, pagination["hasNext"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), userToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/orders", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = env.do(t, http.MethodGet, "/api/v1/orders?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 1)
	stats := body["stats"].([]any)
	require.Len(t, stats, 1)
	assert.Equal(t, "pending", stats[0].(map[string]any)["status"])
	assert.EqualValues(t, 708, stats[0].(map[string]any)["totalAmount"])

	status, _ = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", userToken, map[string]string{"reason": "Ordered by mistake"})
	require.Equal(t, http.StatusOK, status, body)
	cancelled := body["order"].(map[string]any)
	assert.Equal(t, "cancelled", cancelled["orderStatus"])
	assert.Equal(t, "Ordered by mistake", cancelled["cancellationReason"])
	assert.NotEmpty(t, cancelled["cancelledAt"])

	p, err = env.products.GetByID(context.Background(), mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	status, body = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order cannot be cancelled at this stage", body["message"])
}

func TestAdminStatusUpdate(t *testing.T) {
	env := setupApp(t)
	bottle := env.seeded[1]
	userToken := env.register(t, "buyer@example.com")
	adminToken := env.login(t, adminEmail, adminPassword)

	status, body := env.do(t, http.MethodPost, "/api/v1/orders", userToken, orderBody(bottle.ID, 2))
	require.Equal(t, http.StatusCreated, status, body)
	order := body["order"].(map[string]any)
	assert.EqualValues(t, 286, order["total"])
	orderID := order["id"].(string)

	status, _ = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/status", userToken, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/status", adminToken, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])

	status, body = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/status", adminToken, map[string]string{
		"status":         "shipped",
		"trackingNumber": "TRK-42",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "TRK-42", body["order"].(map[string]any)["trackingNumber"])

	status, body = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order cannot be cancelled at this stage", body["message"])

	status, body = env.do(t, http.MethodPut, "/api/v1/orders/"+orderID+"/status", adminToken, map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusOK, status)
	delivered := body["order"].(map[string]any)
	assert.Equal(t, "completed", delivered["paymentStatus"])
	assert.NotEmpty(t, delivered["deliveredAt"])

	status, _ = env.do(t, http.MethodPut, "/api/v1/orders/"+uuid.NewString()+"/status", adminToken, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateOrderRejections(t *testing.T) {
	env := setupApp(t)
	mug := env.seeded[0]
	bottle := env.seeded[1]
	userToken := env.register(t, "buyer@example.com")

	empty := orderBody(mug.ID, 1)
	empty["items"] = []map[string]any{}
	status, body := env.do(t, http.MethodPost, "/api/v1/orders", userToken, empty)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Contains(t, body["errors"], "items")

	noStreet := orderBody(mug.ID, 1)
	delete(noStreet["shippingAddress"].(map[string]any), "street")
	status, body = env.do(t, http.MethodPost, "/api/v1/orders", userToken, noStreet)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "shippingAddress.street")

	status, body = env.do(t, http.MethodPost, "/api/v1/orders", userToken, orderBody(mug.ID, 0))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "items[0].quantity")

	status, _ = env.do(t, http.MethodPost, "/api/v1/orders", userToken, orderBody(uuid.NewString(), 1))
	assert.Equal(t, http.StatusNotFound, status)

	tooMany := orderBody(bottle.ID, 2)
	tooMany["items"] = []map[string]any{
		{"product": bottle.ID, "quantity": 2},
		{"product": mug.ID, "quantity": 6},
	}
	status, body = env.do(t, http.MethodPost, "/api/v1/orders", userToken, tooMany)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Insufficient stock for Ceramic Mug. Available: 5", body["message"])

	p, err := env.products.GetByID(context.Background(), bottle.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

func (e *testEnv) userID(t *testing.T, token string) string {
	t.Helper()
	status, body := e.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status, body)
	return body["user"].(map[string]any)["id"].(string)
}

func TestAdminUserManagement(t *testing.T) {
	env := setupApp(t)
	adminToken := env.login(t, adminEmail, adminPassword)
	adminID := env.userID(t, adminToken)
	ashaToken := env.register(t, "asha@example.com")
	ashaID := env.userID(t, ashaToken)
	env.register(t, "ravi@example.com")

	status, body := env.do(t, http.MethodGet, "/api/v1/users?search=ASHA", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["users"], 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	status, body = env.do(t, http.MethodGet, "/api/v1/users/stats", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["totalUsers"])
	assert.EqualValues(t, 1, stats["adminUsers"])
	assert.EqualValues(t, 2, stats["regularUsers"])
	assert.EqualValues(t, 3, stats["newUsersThisMonth"])

	status, body = env.do(t, http.MethodPut, "/api/v1/users/"+ashaID, adminToken, map[string]any{
		"name":  "Asha Rao",
		"phone": "9876543210",
		"role":  "admin",
	})
	assert.Equal(t, http.StatusOK, status, body)
	updated := body["user"].(map[string]any)
	assert.Equal(t, "Asha Rao", updated["name"])
	assert.Equal(t, "admin", updated["role"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/users", ashaToken, nil)
	assert.Equal(t, http.StatusOK, status, "promotion applies to an existing token")

	status, body = env.do(t, http.MethodPut, "/api/v1/users/"+ashaID, adminToken, map[string]any{"email": "ravi@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists with this email", body["message"])

	status, body = env.do(t, http.MethodPut, "/api/v1/users/"+ashaID, adminToken, map[string]any{"role": "root"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])

	// Demotion takes effect before the token expires.
	status, _ = env.do(t, http.MethodPut, "/api/v1/users/"+ashaID+"/role", adminToken, map[string]any{"role": "user"})
	assert.Equal(t, http.StatusOK, status)
	status, body = env.do(t, http.MethodGet, "/api/v1/users", ashaToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", body["message"])

	status, body = env.do(t, http.MethodDelete, "/api/v1/users/"+adminID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "You cannot delete your own account", body["message"])

	status, body = env.do(t, http.MethodDelete, "/api/v1/users/"+ashaID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User deleted successfully", body["message"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", ashaToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/users/"+ashaID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodDelete, "/api/v1/users/"+ashaID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/qdispatch/api/internal/auth"
	"github.com/qdispatch/api/internal/backend"
	"github.com/qdispatch/api/internal/client"
	"github.com/qdispatch/api/internal/handler"
	"github.com/qdispatch/api/internal/middleware"
	"github.com/qdispatch/api/internal/registry"
	"github.com/qdispatch/api/internal/service"
	"github.com/qdispatch/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	executor *service.ExecutorService
}

// setupApp creates a Fiber app identical to main.go but with only the local
// simulators registered and file storage under a temp dir. No Redis is needed:
// the rate limiter fails open without a client.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	store, err := client.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	catalog := backend.NewCatalog()
	catalog.Register(backend.NewQiskitSimulator())
	catalog.Register(backend.NewCirqSimulator())
	catalog.Register(backend.NewBraketSimulator())

	jobs := registry.New()
	pool := worker.NewPool(4, 16)
	t.Cleanup(pool.Shutdown)

	executor := service.NewExecutorService(jobs, catalog, store, nil, pool,
		time.Millisecond, time.Second)

	circuitsHandler := handler.NewCircuitsHandler(executor, validate)
	authHandler := handler.NewAuthHandler(testJWTSecret)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"ibm":    false,
				"aws":    false,
				"google": false,
				"redis":  false,
				"auth":   true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes (authenticated)
	api := app.Group("/api", authMiddleware.Authenticate())

	circuits := api.Group("/circuits")
	circuits.Post("/execute", rateLimiter.ExecuteLimit(10000), circuitsHandler.Execute)
	circuits.Get("/providers", circuitsHandler.Providers)
	circuits.Get("/jobs/:jobId", circuitsHandler.Status)
	circuits.Get("/jobs/:jobId/result", circuitsHandler.Result)
	circuits.Post("/jobs/:jobId/cancel", circuitsHandler.Cancel)

	return &testApp{app: app, executor: executor}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.Claims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "qdispatch-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

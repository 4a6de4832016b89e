package validation

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/query", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/ingest", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) int {
	t.Helper()

	req := httptest.NewRequest("POST", path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestMiddleware_AcceptsWellFormedQuery(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/query", "application/json",
		`{"query":"What is gravity?","userId":"u1"}`)
	require.Equal(t, fiber.StatusOK, status)
}

func TestMiddleware_RejectsMissingQuery(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/query", "application/json", `{"userId":"u1"}`)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddleware_RejectsOverlongQuery(t *testing.T) {
	app := newApp(Config{MaxQueryLength: 20})
	status := post(t, app, "/api/v1/query", "application/json",
		`{"query":"`+strings.Repeat("a", 40)+`","userId":"u1"}`)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddleware_RejectsMarkupInjection(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/query", "application/json",
		`{"query":"<script>alert(1)</script>","userId":"u1"}`)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddleware_RejectsWrongContentType(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/query", "text/plain", `{"query":"hi"}`)
	require.Equal(t, fiber.StatusUnsupportedMediaType, status)
}

func TestMiddleware_RejectsOversizedIngest(t *testing.T) {
	app := newApp(Config{MaxIngestBytes: 64})
	status := post(t, app, "/api/v1/ingest", "application/json",
		`{"texts":["`+strings.Repeat("b", 200)+`"]}`)
	require.Equal(t, fiber.StatusRequestEntityTooLarge, status)
}

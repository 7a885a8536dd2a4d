package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupResponseTestApp() *fiber.App {
	app := fiber.New()

	app.Get("/shader", func(c *fiber.Ctx) error {
		return JSON(c, fiber.StatusCreated, fiber.Map{"id": "123", "name": "demo"})
	})

	app.Get("/missing", func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusNotFound, "shader not found")
	})

	return app
}

func performResponseTestRequest(t *testing.T, app *fiber.App, path string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading body: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed decoding body %q: %v", raw, err)
	}

	return resp, body
}

func TestJSON(t *testing.T) {
	app := setupResponseTestApp()

	resp, body := performResponseTestRequest(t, app, "/shader")
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	if body["name"] != "demo" {
		t.Fatalf("expected the raw payload, got %+v", body)
	}
	if _, wrapped := body["error"]; wrapped {
		t.Fatalf("success bodies must not carry an error flag, got %+v", body)
	}
}

func TestError(t *testing.T) {
	app := setupResponseTestApp()

	resp, body := performResponseTestRequest(t, app, "/missing")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
	if body["error"] != true {
		t.Fatalf("expected error=true, got %+v", body)
	}
	if body["message"] != "shader not found" {
		t.Fatalf("expected the message, got %+v", body)
	}
}

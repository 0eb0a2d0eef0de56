package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func newTestApp(cfg Config) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	app := fiber.New()
	app.Use(Middleware(cfg))
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Post("/api/sessions", ok)
	app.Post("/api/sessions/:id/execute", ok)
	app.Get("/api/sessions", ok)
	return app
}

func TestRejectsUnsupportedContentType(t *testing.T) {
	app := newTestApp(Config{})

	req := httptest.NewRequest(fiber.MethodPost, "/api/sessions", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "application/xml")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

func TestAllowsKnownContentTypes(t *testing.T) {
	app := newTestApp(Config{})

	for _, contentType := range []string{
		"application/json",
		"multipart/form-data; boundary=xyz",
	} {
		body := "{}"
		if strings.HasPrefix(contentType, "multipart/") {
			body = "--xyz--\r\n"
		}
		req := httptest.NewRequest(fiber.MethodPost, "/api/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request with %q: %v", contentType, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("%q status = %d, want 200", contentType, resp.StatusCode)
		}
	}
}

func TestIgnoresContentTypeOnGet(t *testing.T) {
	app := newTestApp(Config{})

	req := httptest.NewRequest(fiber.MethodGet, "/api/sessions", nil)
	req.Header.Set("Content-Type", "application/xml")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRejectsOversizedCode(t *testing.T) {
	app := newTestApp(Config{MaxCodeLength: 10})

	body := `{"code": "print('this line is longer than ten characters')"}`
	req := httptest.NewRequest(fiber.MethodPost, "/api/sessions/abc/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRejectsMalformedExecuteBody(t *testing.T) {
	app := newTestApp(Config{})

	req := httptest.NewRequest(fiber.MethodPost, "/api/sessions/abc/execute", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRejectsOversizedUpload(t *testing.T) {
	app := newTestApp(Config{MaxUploadSize: 16})

	body := `{"filename": "big.csv", "file_data": "aaaaaaaaaaaaaaaaaaaaaaaa"}`
	req := httptest.NewRequest(fiber.MethodPost, "/api/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

package ratelimit

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, maxPerWindow int, window time.Duration) *RateLimiter {
	t.Helper()
	rl := New(Config{
		MaxRequestsPerMinute: maxPerWindow,
		WindowDuration:       window,
		Logger:               zap.NewNop(),
	})
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllowExhaustsTokens(t *testing.T) {
	rl := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.allow("client") {
			t.Fatalf("request %d denied before bucket was empty", i+1)
		}
	}
	if rl.allow("client") {
		t.Error("request allowed after bucket was drained")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	rl := newTestLimiter(t, 2, 20*time.Millisecond)

	rl.allow("client")
	rl.allow("client")
	if rl.allow("client") {
		t.Fatal("request allowed with empty bucket")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.allow("client") {
		t.Error("request denied after refill window elapsed")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Minute)

	if !rl.allow("a") {
		t.Fatal("first request for key a denied")
	}
	if rl.allow("a") {
		t.Error("second request for key a allowed")
	}
	if !rl.allow("b") {
		t.Error("key b should have its own bucket")
	}
}

func TestMiddlewareRejectsWithDetail(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Minute)

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first request status = %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload["detail"] != "Rate limit exceeded. Please try again later." {
		t.Errorf("detail = %q", payload["detail"])
	}
}

func TestMiddlewareUserIDOverridesIP(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Minute)

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	// Drain the IP bucket.
	app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	resp, _ := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("ip bucket status = %d, want 429", resp.StatusCode)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set("X-User-ID", "alice")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("user request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("user bucket status = %d, want 200", resp.StatusCode)
	}
}

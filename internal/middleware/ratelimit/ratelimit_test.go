package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRateLimiterCapsRequests(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, resp.StatusCode, fiber.StatusOK)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusTooManyRequests)
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := New(Config{})
	defer rl.Stop()

	if rl.maxTokens != 60 {
		t.Errorf("maxTokens = %d, want 60", rl.maxTokens)
	}
	if !rl.allow("10.0.0.1") {
		t.Error("first request should be allowed")
	}
}

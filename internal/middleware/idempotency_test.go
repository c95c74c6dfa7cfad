package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/tokenledger/internal/logging"
)

func setupTestApp(t *testing.T, required bool) (*fiber.App, *atomic.Int32, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(IdempotencyConfig{Cache: cache, TTL: time.Minute, Logger: logging.Discard(), Required: required}))

	calls := &atomic.Int32{}
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n, "key": IdempotencyKey(c)})
	})
	app.Post("/other", func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.SendStatus(fiber.StatusServiceUnavailable)
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, calls, cleanup
}

func post(t *testing.T, app *fiber.App, path, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, cleanup := setupTestApp(t, true)
	defer cleanup()

	if status, _ := post(t, app, "/resource", ""); status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyOptionalHeader(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, false)
	defer cleanup()

	post(t, app, "/resource", "")
	post(t, app, "/resource", "")
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, true)
	defer cleanup()

	status, payload := post(t, app, "/resource", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	status, cached := post(t, app, "/resource", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if cached != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cached)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("handler ran %d times", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cached), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
	if decoded["key"] != "abc123" {
		t.Fatalf("handler did not see idempotency key: %v", decoded)
	}
}

func TestIdempotencyScopedByPath(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, true)
	defer cleanup()

	post(t, app, "/resource", "same")
	post(t, app, "/other", "same")
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected both paths to run, got %d calls", got)
	}
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, true)
	defer cleanup()

	post(t, app, "/broken", "k")
	post(t, app, "/broken", "k")
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected retry after server error, got %d calls", got)
	}
}

func TestIdempotencySkipsNoStoreResponses(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(Idempotency(IdempotencyConfig{Cache: cache, TTL: time.Minute, Logger: logging.Discard()}))
	calls := &atomic.Int32{}
	app.Post("/secret", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		c.Set(fiber.HeaderCacheControl, "private, no-store")
		return c.JSON(fiber.Map{"privateKey": "0xsecret", "call": n})
	})

	for i := 0; i < 2; i++ {
		if status, _ := post(t, app, "/secret", "k1"); status != fiber.StatusOK {
			t.Fatalf("attempt %d: status %d", i+1, status)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls.Load())
	}
	for _, key := range mr.Keys() {
		if v, _ := mr.Get(key); strings.Contains(v, "0xsecret") {
			t.Fatalf("secret response stored under %q", key)
		}
	}
}

package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/tokenledger/internal/config"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/middleware"
	"github.com/congo-pay/tokenledger/internal/payments"
	"github.com/congo-pay/tokenledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Ledger   *ledger.Ledger
	Payments *payments.Service
	Wallets  *wallet.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Idempotency(middleware.IdempotencyConfig{
		Cache:    d.Cache,
		TTL:      d.Cfg.IdempotencyTTL,
		Logger:   d.Logger,
		Required: d.Cfg.RequireIdempotencyKey,
	}))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterLedgerRoutes(api, ledger.NewHandler(d.Ledger))
	RegisterPaymentRoutes(api, payments.NewHandler(d.Payments, d.Wallets))
	RegisterWalletRoutes(api, wallet.NewHandler(d.Wallets), middleware.RateLimit(d.Cache, "reveal", d.Cfg.RevealMaxPerMin))
}

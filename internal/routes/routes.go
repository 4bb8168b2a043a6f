package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rrvaldoo/DOSWALLET/internal/config"
	"github.com/rrvaldoo/DOSWALLET/internal/ledger"
	"github.com/rrvaldoo/DOSWALLET/internal/middleware"
	"github.com/rrvaldoo/DOSWALLET/internal/notification"
	"github.com/rrvaldoo/DOSWALLET/internal/store"
	"github.com/rrvaldoo/DOSWALLET/internal/transaction"
	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres when configured, in-memory for local dev.
	var (
		st           store.Store
		ledgerReader ledger.Reader
		walletReader wallet.Reader
	)
	if d.DB != nil {
		st = store.NewPostgres(d.DB, d.Cfg.LockTimeout)
		ledgerReader = ledger.NewPostgresReader(d.DB)
		walletReader = wallet.NewPostgresReader(d.DB)
	} else {
		mem := store.NewMemory()
		st = mem
		ledgerReader = mem
		walletReader = mem
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	txService := transaction.NewService(st, notifier, d.Logger)
	txHandler := transaction.NewHandler(txService)
	ledgerHandler := ledger.NewHandler(ledgerReader)
	walletHandler := wallet.NewHandler(wallet.NewService(walletReader))

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterTransactionRoutes(api, txHandler, ledgerHandler)
	RegisterWalletRoutes(api, walletHandler)

	return nil
}

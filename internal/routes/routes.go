package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/spliteth/spliteth/internal/account"
	"github.com/spliteth/spliteth/internal/badge"
	"github.com/spliteth/spliteth/internal/chain"
	"github.com/spliteth/spliteth/internal/config"
	"github.com/spliteth/spliteth/internal/digest"
	"github.com/spliteth/spliteth/internal/events"
	"github.com/spliteth/spliteth/internal/identity"
	"github.com/spliteth/spliteth/internal/ipfs"
	"github.com/spliteth/spliteth/internal/middleware"
	"github.com/spliteth/spliteth/internal/notification"
	"github.com/spliteth/spliteth/internal/session"
	"github.com/spliteth/spliteth/internal/settlement"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache,
// Chain and Provider are optional: without a database activations are kept
// in memory, without Redis codes and rate limits are per process, and
// without a chain client the chain-backed endpoints answer 500.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Logger    *slog.Logger
	Chain     *chain.Client
	Provider  *identity.Provider
	Notifier  notification.Notifier
	Publisher events.Publisher
	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}
	if d.Publisher == nil {
		d.Publisher = events.NewLogPublisher(d.Logger)
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: d.Registerer})
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger, "/healthz", "/metrics"))
	app.Use(metrics.Handler())

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	// Services and handlers
	var activationRepo account.Repository
	if d.DB != nil {
		activationRepo = account.NewPostgresRepository(d.DB)
	} else {
		activationRepo = account.NewMemoryRepository()
	}

	var (
		provisioner   *account.Provisioner
		sessionSvc    *session.Service
		settlementSvc *settlement.Service
		badgeSvc      *badge.Service
	)
	if d.Chain != nil && d.Provider != nil {
		provisioner = account.NewProvisioner(d.Chain, activationRepo, account.Options{
			WaitForActivation: d.Cfg.WaitForActivation,
			TxTimeout:         d.Cfg.TxWaitTimeout,
			Logger:            d.Logger,
			Publisher:         d.Publisher,
		})
		sessionSvc = session.NewService(d.Provider, provisioner, d.Notifier, session.Options{
			Store:           codeStore(d.Cache),
			CodeTTL:         d.Cfg.CodeTTL,
			SessionDuration: d.Cfg.SessionDuration,
			Logger:          d.Logger,
		})
		settlementSvc = settlement.NewService(d.Chain, settlement.Options{
			Wait:      d.Cfg.WaitForSplit,
			TxTimeout: d.Cfg.TxWaitTimeout,
			Publisher: d.Publisher,
			Logger:    d.Logger,
		})
		badgeSvc = badge.NewService(d.Chain, ipfs.NewClient(d.Cfg.IPFSURL))
	} else {
		d.Logger.Warn("chain configuration incomplete; protocol endpoints disabled",
			slog.Any("missing", d.Cfg.Chain.Missing()))
		provisioner = account.NewProvisioner(nil, activationRepo, account.Options{Logger: d.Logger})
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	idempotency := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterSessionRoutes(api, session.NewHandler(sessionSvc), middleware.RequestRateLimit(d.Cache, d.Cfg.RequestRate), idempotency)
	RegisterAccountRoutes(api, account.NewHandler(provisioner))
	RegisterSettlementRoutes(api, settlement.NewHandler(settlementSvc), idempotency)
	RegisterBadgeRoutes(api, badge.NewHandler(badgeSvc))
	RegisterDigestRoutes(api, digest.NewHandler())

	return nil
}

func codeStore(cache *redis.Client) session.CodeStore {
	if cache != nil {
		return session.NewRedisStore(cache)
	}
	return session.NewMemoryStore()
}

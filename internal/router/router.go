package router

import (
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/handler"
	"pricewatch/internal/importer"
	"pricewatch/internal/infra"
	"pricewatch/internal/middleware"
	"pricewatch/internal/model"
	"pricewatch/internal/recall"
	"pricewatch/internal/repository"
	"pricewatch/internal/scraper"
	"pricewatch/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine plus the
// cycle scheduler for the caller to start.
// Dependency graph: Handler ← Worker ← Repository ← DB
func New(cfg *config.Config, db *gorm.DB) (*gin.Engine, *worker.Cycle) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(300, time.Minute)) // 300 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	mailer := infra.NewMailer(cfg)
	notifiers := func(st *model.Settings) []worker.Notifier {
		var out []worker.Notifier
		if st.EmailConfigured() {
			out = append(out, mailer.For(st))
		}
		if cfg.TelegramToken != "" {
			tg, err := infra.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
			if err != nil {
				log.Error().Err(err).Msg("telegram notifier unavailable")
			} else {
				out = append(out, tg)
			}
		}
		return out
	}

	sc := scraper.NewAuto()
	imp := importer.NewIMAPImporter(cfg)
	rec := recall.NewReconciler(recall.NewCPSCClient(), recall.NewFDAClient())

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// ── Workers ──────────────────────────────────────────────────────────────
	cycle := worker.NewCycle(productRepo, settingsRepo, sc, imp, rec, notifiers)
	pool := worker.NewCheckPool(productRepo, sc)

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(productRepo, pool)
	settingsH := handler.NewSettingsHandler(settingsRepo)
	recallsH := handler.NewRecallsHandler(productRepo, cycle)
	ordersH := handler.NewOrdersHandler(cycle)
	statusH := handler.NewStatusHandler(cycle, productRepo)
	notificationsH := handler.NewNotificationsHandler(settingsRepo, notifiers)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db))

	v1 := r.Group("/v1")
	{
		v1.GET("/status", statusH.Get)

		products := v1.Group("/products")
		{
			products.POST("", productsH.Add)
			products.GET("", productsH.List)
			products.GET("/archived", productsH.ListArchived)
			products.POST("/archive-expired", productsH.ArchiveExpired)
			products.GET("/:id", productsH.Get)
			products.POST("/:id/check", productsH.Check)
			products.PATCH("/:id/settings", productsH.Update)
			products.POST("/:id/archive", productsH.Archive)
			products.POST("/:id/restore", productsH.Restore)
			products.DELETE("/:id", productsH.Delete)
		}

		v1.GET("/settings", settingsH.Get)
		v1.PUT("/settings", settingsH.Update)

		v1.POST("/orders/scan", ordersH.Scan)

		v1.POST("/recalls/scan", recallsH.Scan)
		v1.POST("/recalls/:id/dismiss", recallsH.Dismiss)

		v1.POST("/notifications/test", notificationsH.Test)
	}

	return r, cycle
}

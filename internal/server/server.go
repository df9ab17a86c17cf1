package server

import (
	"errors"
	"strings"
	"time"

	"kimbiofarm-backend/internal/audit"
	"kimbiofarm-backend/internal/auth"
	"kimbiofarm-backend/internal/config"
	"kimbiofarm-backend/internal/dashboard"
	"kimbiofarm-backend/internal/inventory"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/logging"
	"kimbiofarm-backend/internal/models"
	"kimbiofarm-backend/internal/spreadsheet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// errorHandler renders every unhandled error as the {"success": false} envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"message": fe.Message,
		})
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Lỗi máy chủ không mong muốn",
	})
}

func corsOrigins(raw string) string {
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return strings.Join(origins, ",")
}

// New wires every route onto a fiber app backed by db.
func New(cfg *config.Config, db *gorm.DB) *fiber.App {
	return newWithClock(cfg, db, time.Now)
}

func newWithClock(cfg *config.Config, db *gorm.DB, now func() time.Time) *fiber.App {
	uploadBytes := int64(cfg.MaxUploadMB) * 1024 * 1024

	app := fiber.New(fiber.Config{
		AppName:      "kimbiofarm",
		BodyLimit:    int(uploadBytes),
		ErrorHandler: errorHandler,
		// plant codes may hold spaces and Vietnamese letters
		UnescapePath: true,
	})

	app.Use(recover.New())
	app.Use(logging.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  corsOrigins(cfg.CORSOrigins),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: "Content-Disposition, X-Matched, X-Unmatched, X-Row-Count",
	}))

	ledgerSvc := ledger.NewService(db).WithClock(now)
	dashSvc := dashboard.NewService(db).WithClock(now)
	importer := spreadsheet.NewImporter(db).WithClock(now)
	matcher := spreadsheet.NewMatcher(spreadsheet.DefaultRules)
	images := inventory.NewImageStore(cfg.ImageDir, uploadBytes)

	requireAuth := auth.JWTMiddleware(cfg)
	requireAdmin := auth.RequireRole(models.RoleAdmin)

	api := app.Group("/api")

	api.Get("/health", healthHandler(db))

	// Auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg))
	api.Get("/auth/me", requireAuth, auth.MeHandler(db))

	// Everything below attributes audit rows to the caller when a token is sent.
	api.Use(auth.OptionalJWT(cfg))

	api.Get("/dashboard", dashboard.SummaryHandler(dashSvc))

	// Ledger
	api.Get("/stock", inventory.StockListHandler(db, cfg.PageSize))
	api.Get("/receipts/form", inventory.ReceiptFormHandler(db, now))
	api.Post("/receipts", inventory.CreateReceiptHandler(ledgerSvc))
	api.Get("/dispatches/form", inventory.DispatchFormHandler(db, now))
	api.Post("/dispatches", inventory.CreateDispatchHandler(ledgerSvc))
	api.Get("/history", inventory.HistoryHandler(db, cfg.PageSize))

	// Plants
	api.Get("/plants/:code", inventory.PlantDetailHandler(db))
	api.Get("/plants/:code/summary", inventory.PlantSummaryHandler(db))
	api.Get("/plants/:code/balance", inventory.PlantBalanceHandler(ledgerSvc))
	api.Get("/plants/:code/image", inventory.GetImageHandler(db, images))
	api.Delete("/plants/:code", requireAuth, requireAdmin, inventory.DeletePlantHandler(ledgerSvc, images))
	api.Post("/plants/:code/image", requireAuth, requireAdmin, inventory.UploadImageHandler(ledgerSvc, images))
	api.Post("/plants/:code/image-url", requireAuth, requireAdmin, inventory.ImageURLHandler(ledgerSvc, images))

	// Spreadsheets
	api.Post("/import", requireAuth, requireAdmin, spreadsheet.ImportHandler(importer))
	api.Post("/reconcile", requireAuth, requireAdmin, spreadsheet.ReconcileHandler(matcher, now))
	api.Get("/export/receipts", spreadsheet.ExportReceiptsHandler(db, now))

	// Audit
	api.Get("/audit-logs", requireAuth, requireAdmin, audit.ListAuditLogsHandler(db))

	return app
}

// GET /api/health
func healthHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"database": "down",
			})
		}
		return c.JSON(fiber.Map{
			"status":   "ok",
			"database": "up",
		})
	}
}

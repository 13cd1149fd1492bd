package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/billing"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/scheduler"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
	"github.com/tikusl4ju/myinvoice-sync/pkg/jwt"
	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Lifecycle    *billing.Lifecycle
	Certificates *billing.CertificateService
	Settings     *billing.RuntimeSettings
	Receipts     *billing.ReceiptUseCase
	Orders       repository.OrderRepository
	Scheduler    *scheduler.Scheduler
	Metrics      http.Handler // nil = sin /metrics
	JWTSecret    string
	Log          *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	app.Use(RequestID(), AccessLog(log.Component("http")))

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleOperator)
	adminOnly := RequireRole(jwt.RoleAdmin)

	// Libro de envíos
	docs := api.Group("/documents", anyRole)
	docHandler := NewDocumentHandler(deps.Lifecycle, deps.Receipts)
	docs.Get("/", docHandler.List)
	docs.Post("/test", docHandler.SubmitTest)
	docs.Get("/:no", docHandler.Get)
	docs.Delete("/:no", adminOnly, docHandler.Delete)
	docs.Get("/:no/receipt", docHandler.Receipt)
	docs.Post("/:no/sync", docHandler.Sync)
	docs.Post("/:no/cancel", docHandler.Cancel)
	docs.Post("/:no/resubmit", docHandler.Resubmit)
	docs.Post("/:no/credit-note", docHandler.CreateCreditNote)
	docs.Post("/:no/refund-note", docHandler.CreateRefundNote)
	docs.Post("/:no/refund-complete", docHandler.MarkRefundComplete)

	// Pedidos del comercio
	orders := api.Group("/orders", anyRole)
	orderHandler := NewOrderHandler(deps.Lifecycle, deps.Orders)
	orders.Post("/", orderHandler.Ingest)
	orders.Post("/:id/submit", orderHandler.Submit)
	orders.Post("/:id/refunded", orderHandler.Refunded)

	// Contribuyentes y token
	taxHandler := NewTaxpayerHandler(deps.Lifecycle)
	api.Get("/taxpayers/:tin/validate", anyRole, taxHandler.ValidateTIN)
	api.Post("/token/refresh", adminOnly, taxHandler.RefreshToken)

	// Certificados (admin)
	certs := api.Group("/certificates", adminOnly)
	certHandler := NewCertificateHandler(deps.Certificates)
	certs.Get("/", certHandler.List)
	certs.Post("/", certHandler.Upload)
	certs.Post("/p12", certHandler.ImportP12)
	certs.Post("/reset", certHandler.Reset)
	certs.Post("/:id/activate", certHandler.Activate)
	certs.Delete("/:id", certHandler.Delete)

	// Ajustes (lectura para todos, escritura admin)
	settingsHandler := NewSettingsHandler(deps.Certificates, deps.Settings)
	api.Get("/settings", anyRole, settingsHandler.Get)
	api.Put("/settings/ubl-version", adminOnly, settingsHandler.SetUBLVersion)
	api.Put("/settings/scheduler", adminOnly, settingsHandler.SetScheduler)

	// Planificador
	if deps.Scheduler != nil {
		schedHandler := NewSchedulerHandler(deps.Scheduler, deps.Settings)
		api.Get("/scheduler", anyRole, schedHandler.Status)
		api.Post("/scheduler/passes/:name/run", adminOnly, schedHandler.RunPass)
	}
}

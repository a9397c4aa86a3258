package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/middleware"
)

// Handlers groups every HTTP handler the route table mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Health   *handlers.HealthHandler
	Document *handlers.DocumentHandler
	Review   *handlers.ReviewHandler
	Search   *handlers.SearchHandler
	User     *handlers.UserHandler
}

func rateLimit(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               perMinute,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	users middleware.UserLoader,
	m *metrics.Metrics,
	h Handlers,
) {
	app.Get("/metrics", m.Handler())

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(rateLimit(120))

	api.Get("/health", h.Health.Check)

	// Auth: public, stricter limit
	auth := api.Group("/auth")
	auth.Post("/register", rateLimit(10), h.Auth.Register)
	auth.Post("/login", rateLimit(10), h.Auth.Login)
	auth.Post("/refresh", rateLimit(10), h.Auth.Refresh)

	// Everything below needs a valid token and an active account. The user
	// is reloaded from the store on each request.
	jwt := middleware.JWTProtected(cfg)
	currentUser := middleware.CurrentUser(users)
	protected := func(hs ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{jwt, currentUser}, hs...)
	}

	auth.Post("/logout", protected(h.Auth.Logout)...)
	auth.Delete("/account", protected(h.Auth.DeleteAccount)...)
	api.Get("/me", protected(h.Auth.Me)...)

	docs := api.Group("/documents", protected()...)
	docs.Post("/", h.Document.Upload)
	docs.Get("/", h.Document.List)
	docs.Get("/:id", h.Document.Get)
	docs.Get("/:id/download", h.Document.Download)
	docs.Delete("/:id", h.Document.Delete)
	docs.Get("/:id/history", h.Document.History)
	docs.Post("/:id/resubmit", h.Document.Resubmit)

	search := api.Group("/search", protected()...)
	search.Get("/", h.Search.Search)
	search.Get("/recent", h.Search.Recent)

	reviews := api.Group("/reviews", protected(middleware.ModeratorRequired())...)
	reviews.Get("/queue", h.Review.Queue)
	reviews.Post("/documents/:id", h.Review.Submit)
	reviews.Get("/documents/:id/assignments", h.Review.Assignments)

	admin := api.Group("/admin", protected(middleware.AdminRequired())...)
	admin.Post("/documents/:id/assign", h.Review.Assign)
	admin.Get("/users", h.User.List)
	admin.Post("/users", h.User.Create)
	admin.Get("/roles", h.User.RoleStats)
	admin.Put("/users/:id/role", h.User.SetRole)
	admin.Put("/users/:id/permissions", h.User.SetPermissions)
	admin.Put("/users/:id/active", h.User.SetActive)
}

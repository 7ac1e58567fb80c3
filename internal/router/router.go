// Package router assembles the echo instance: global middleware, the
// plumbing endpoints and the API route groups.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/config"
	"github.com/iliyamo/sneak-radar/internal/handler"
	"github.com/iliyamo/sneak-radar/internal/middleware"
	"github.com/iliyamo/sneak-radar/internal/model"
	"github.com/iliyamo/sneak-radar/internal/validation"
)

// Deps are the handlers and infrastructure the routes need.  Redis may
// be nil.
type Deps struct {
	Cfg       config.Config
	Log       *logrus.Logger
	DB        handler.Pinger
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig

	Hints  *handler.HintHandler
	Public *handler.PublicHandler
	Admin  *handler.AdminHandler
	Auth   *handler.AuthHandler
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.Echo{}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.Cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	RegisterRoutes(e, d.DB, d.Cfg.StaticDir)
	RegisterAuth(e, d.Auth, d.Cfg.JWTSecret)

	api := e.Group("/v1", middleware.NewTokenBucket(d.RateLimit, d.Redis))
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	writes := middleware.NewTokenBucket(middleware.WriteLimits(d.RateLimit), d.Redis)
	RegisterPublic(api, d.Public)
	RegisterHints(api, d.Hints, cache, writes)
	RegisterAdmin(api, d.Admin, d.Cfg.JWTSecret)
	return e
}

// RegisterRoutes registers the plumbing endpoints: health, metrics and,
// when dir is set, the static client under /static.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, dir string) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if dir != "" {
		e.Static("/static", dir)
	}
}

// RegisterAuth registers curator session routes.  /v1/me needs a valid
// access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin, model.RoleMember))
}

// RegisterPublic registers the city and cinema browse endpoints.
func RegisterPublic(g *echo.Group, p *handler.PublicHandler) {
	g.GET("/cities", p.GetCities)
	g.GET("/cities/:id/cinemas", p.GetCityCinemas)
	g.GET("/cinemas", p.GetCinemas)
}

// RegisterHints registers the anonymous hint endpoints.  Reads go
// through the response cache, writes through the stricter write bucket.
func RegisterHints(g *echo.Group, h *handler.HintHandler, cache, writes echo.MiddlewareFunc) {
	g.POST("/hints", h.Submit, writes)
	g.POST("/hints/:id/vote", h.Vote, writes)
	g.GET("/cinemas/:id/guesses", h.Guesses, cache)
	g.GET("/cinemas/:id/hints", h.ListHints, cache)
	g.GET("/audit/accuracy", h.Accuracy, cache)
}

// RegisterAdmin registers the ADMIN-only catalog and directory routes.
func RegisterAdmin(g *echo.Group, a *handler.AdminHandler, jwtSecret string) {
	admin := g.Group("/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/cities", a.CreateCity)
	admin.POST("/cinemas", a.CreateCinema)
	admin.POST("/movies/reconcile", a.Reconcile)
	admin.POST("/movies/:id/refresh", a.RefreshMovie)
}

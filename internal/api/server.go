// Package api exposes the planner over HTTP with echo.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dailyplan/internal/auth"
	"dailyplan/internal/billing"
	"dailyplan/internal/service"
)

// Authenticator turns an Authorization header into a verified identity.
type Authenticator interface {
	VerifyHeader(header string) (auth.Identity, error)
}

// Deps are the collaborators the handlers dispatch to.
type Deps struct {
	Auth     Authenticator
	Users    *service.UserService
	Tasks    *service.TaskService
	Notes    *service.NoteService
	Journals *service.JournalService
	Billing  *billing.Gate
	Logger   *log.Logger
}

// Options tune the outer HTTP surface.
type Options struct {
	CORSOrigins []string
	RateLimit   float64
}

// New builds an echo instance with the shared middleware stack and every
// route registered.
func New(d Deps, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = errorHandler(d.Logger)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.Recover())
	e.Use(observeRequests(d.Logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
	}))
	if opts.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimit))))
	}

	Register(e, d)
	return e
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", healthz())
	e.POST("/api/stripe/webhook", postWebhook(d.Billing))

	authed := e.Group("/api", authenticate(d.Auth, d.Users))

	authed.GET("/tasks", getTasks(d.Tasks))
	authed.POST("/tasks", postTask(d.Tasks))
	authed.GET("/tasks/completion", getCompletion(d.Tasks))
	authed.PATCH("/tasks/:id", patchTask(d.Tasks))
	authed.DELETE("/tasks/:id", deleteTask(d.Tasks))

	authed.GET("/notes", getNotes(d.Notes))
	authed.POST("/notes", postNote(d.Notes))
	authed.PATCH("/notes/:id", patchNote(d.Notes))
	authed.DELETE("/notes/:id", deleteNote(d.Notes))

	journals := authed.Group("/journals", requireSubscription(d.Billing))
	journals.GET("", getJournal(d.Journals))
	journals.POST("", postJournal(d.Journals))
	journals.PATCH("/:id", patchJournal(d.Journals))
	journals.PATCH("/:id/clear", clearJournal(d.Journals))

	authed.GET("/users/me", getMe())
	authed.DELETE("/users/me", deleteMe(d.Users))

	authed.GET("/stripe/subscription-status", getSubscriptionStatus(d.Billing))
	authed.POST("/stripe/create-checkout-session", postCheckout(d.Billing))
	authed.POST("/stripe/cancel-subscription", postCancel(d.Billing), requireSubscription(d.Billing))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

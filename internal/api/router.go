package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"tiergate/internal/api/handlers"
)

type Dependencies struct {
	WebhookHandler *handlers.WebhookHandler
	OAuthHandler   *handlers.OAuthHandler
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	AuditHandler   *handlers.AuditHandler
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Inbound Procore events. Both routes ack with 200 unconditionally.
	router.POST("/webhooks/procore", wrap(deps.WebhookHandler.Handle))
	router.POST("/", wrap(deps.WebhookHandler.Handle))

	// OAuth bootstrap
	router.GET("/oauth/callback", wrap(deps.OAuthHandler.Callback))

	// Operations
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))
	router.GET("/decisions", wrap(deps.AuditHandler.List))

	return router
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		handler(w, r)
	}
}

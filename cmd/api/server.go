package main

import (
	"github.com/gin-gonic/gin"

	"github.com/tradiehub/messaging-api/internal/chat"
	"github.com/tradiehub/messaging-api/internal/config"
	"github.com/tradiehub/messaging-api/internal/identity"
	"github.com/tradiehub/messaging-api/internal/middleware"
	"github.com/tradiehub/messaging-api/internal/realtime"
)

// api holds the wired dependencies behind the HTTP and websocket surface.
type api struct {
	cfg      *config.Config
	svc      *chat.Service
	hub      *realtime.Hub
	verifier *identity.Verifier
	limiter  *middleware.LimiterStore
}

// newAPI returns a ready-to-use api wired with the service, hub and verifier.
func newAPI(cfg *config.Config, svc *chat.Service, hub *realtime.Hub, verifier *identity.Verifier, limiter *middleware.LimiterStore) *api {
	return &api{cfg: cfg, svc: svc, hub: hub, verifier: verifier, limiter: limiter}
}

// routes assembles the gin engine. Every messaging route requires a Bearer
// token; the websocket endpoint authenticates during the handshake instead
// because browser websocket clients cannot set headers.
func (a *api) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1/messaging")
	v1.Use(middleware.Authenticate(a.verifier), middleware.RateLimit(a.limiter))
	{
		v1.POST("", a.createConversation)
		v1.GET("", a.listConversations)
		v1.GET("/unread/count", a.unreadTotal)
		v1.GET("/:id", a.getConversation)
		v1.POST("/:id/messages", a.sendMessage)
		v1.PUT("/:id/read", a.markRead)
	}

	router.GET("/ws", a.serveWS)

	return router
}

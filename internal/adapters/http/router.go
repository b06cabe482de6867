package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	AppName    = "Meet"
	AppVersion = "2.0"

	clientTokenKey = "client_token"
)

type Deps struct {
	Orch       *orch.Orchestrator
	Store      core.Store
	Signal     *signal.SignalWSController
	Metrics    http.Handler
	ICEServers []webrtc.ICEServer
}

// ClientTokenMiddleware keeps a stable per-browser id in the session cookie.
// /ws/:code uses it as the client id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func CORSMiddleware(origins []string) gin.HandlerFunc {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case wildcard, slices.Contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
			c.Header("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(requestLogger())
	}
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(cfg.CORS.Origins))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("MeetSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{store: d.Store, orch: d.Orch, ice: d.ICEServers}

	r.Static("/static", cfg.StaticPath)
	r.GET("/", h.status)
	r.GET("/health", h.health)
	r.HEAD("/health", h.health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	api := r.Group("/api")
	api.POST("/meetings", h.createMeeting)
	api.GET("/meetings/:code", h.getMeeting)
	api.GET("/meetings/:code/participants", h.listParticipants)
	api.GET("/ice-servers", h.iceServers)

	ws := r.Group("/ws")
	ws.GET("/:code/:clientId", func(c *gin.Context) {
		d.Signal.ServeRoom(ctx, c, domain.RoomCode(c.Param("code")), domain.ClientID(c.Param("clientId")))
	})
	ws.GET("/:code", func(c *gin.Context) {
		d.Signal.ServeRoom(ctx, c, domain.RoomCode(c.Param("code")), domain.ClientID(c.GetString(clientTokenKey)))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}

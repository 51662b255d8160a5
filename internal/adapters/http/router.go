package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dkeye/Collab/internal/adapters/rtc"
	"github.com/dkeye/Collab/internal/adapters/signal"
	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/config"
	transport "github.com/dkeye/Collab/internal/transport/http"
)

// Deps are the collaborators the router hands to its handlers. The sqlite
// store satisfies every interface here.
type Deps struct {
	Orch     *orch.Orchestrator
	Auth     app.Authenticator
	Meetings app.MeetingStore
	Admin    app.MeetingAdmin
	Chat     app.ChatStore
	DB       app.Pinger
}

// bearerToken finds the caller's token: query string first (browsers cannot
// set headers on a WebSocket handshake), then the Authorization header, then
// the cookie session.
func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if t, ok := sessions.Default(c).Get(transport.SessionToken).(string); ok {
		return t
	}
	return ""
}

// AuthMiddleware rejects the request with 401 unless the token verifies.
// Nothing unauthenticated reaches the core.
func AuthMiddleware(auth app.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.Verify(c.Request.Context(), bearerToken(c))
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("auth failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(transport.PrincipalKey, p)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no secret configured, sessions will not survive a restart")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("CollabSession", store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	api := &transport.API{
		Orch:     d.Orch,
		Auth:     d.Auth,
		Meetings: d.Meetings,
		Admin:    d.Admin,
		Chat:     d.Chat,
		DB:       d.DB,
		ICE:      rtc.Configuration(cfg.ICEServers),
	}
	ctl := signal.NewSignalWSController(d.Orch, d.Meetings, d.Chat, signal.Limits{
		SendBuffer:      cfg.SendBuffer,
		ReadLimit:       cfg.ReadLimit,
		PingPeriod:      cfg.PingPeriod,
		EventRate:       rate.Limit(cfg.EventRate),
		EventBurst:      cfg.EventBurst,
		MaxParticipants: cfg.MaxParticipants,
	}, cfg.AllowedOrigins)

	r.GET("/healthz", api.Healthz)
	r.POST("/api/session", api.CreateSession)
	r.DELETE("/api/session", api.DeleteSession)

	authed := r.Group("/api", AuthMiddleware(d.Auth))
	authed.GET("/me", api.Me)
	authed.GET("/presence", api.Presence)
	authed.GET("/rooms", api.Rooms)
	authed.GET("/ice-servers", api.ICEServers)

	authed.GET("/meetings", api.LiveMeetings)
	authed.POST("/meetings", api.CreateMeeting)
	authed.GET("/meetings/:id", api.Meeting)
	authed.POST("/meetings/:id/end", api.EndMeeting)
	authed.GET("/meetings/:id/participants", api.Participants)
	authed.GET("/meetings/:id/attendance", api.Attendance)
	authed.GET("/meetings/:id/messages", api.MeetingHistory)
	authed.GET("/conversations/:id/messages", api.ConversationHistory)

	authed.GET("/ws", func(c *gin.Context) {
		p, _ := transport.CurrentPrincipal(c)
		log.Debug().Str("module", "adapters.http").Str("user", string(p.ID)).Msg("ws endpoint hit")
		ctl.HandleSignal(ctx, c, p)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}

/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying logging, CORS and identity extraction
before delegating requests to the auth API, the avatar endpoints and the
WebSocket entry point.
*/
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/samber/lo"

	"livechat/internal/pkg/auth/jwt"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/resp"
)

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "livechat"

	healthPingTimeout = 2 * time.Second
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := lo.SliceToMap(deps.Config.AllowedOrigins, func(origin string) (string, struct{}) {
		return origin, struct{}{}
	})

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/health", HandleHealth(deps))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))

			auth.Group(func(private chi.Router) {
				private.Use(jwt.RequireIdentity)

				private.Get("/me", HandleMe(deps))
				private.Put("/profile", HandleUpdateProfile(deps))
				private.Post("/logout", HandleLogout(deps))
				private.Post("/avatar/presign", HandlePresignAvatarURL(deps))
				private.Post("/avatar", HandleUploadAvatar(deps))
			})
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

// HandleHealth reports store connectivity and the number of admitted connections.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		database := "connected"
		if err := deps.Store.Ping(ctx); err != nil {
			logx.Warn("Health check: database ping failed", "error", err)
			database = "disconnected"
		}

		online := 0
		if list, err := deps.Hub.Online(ctx); err == nil {
			online = len(list)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"status":   "ok",
			"service":  ServiceName,
			"database": database,
			"online":   online,
		})
	}
}

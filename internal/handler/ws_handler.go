/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains HandleWebSocket, which authenticates the handshake, marks the
account online, upgrades the connection and hands it to the chat hub.
*/
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"livechat/internal/app/chat"
	"livechat/internal/app/db"
	"livechat/internal/pkg/auth/jwt"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/resp"
)

const compensateTimeout = 5 * time.Second

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
//
// With a token, the account is verified and marked online before the upgrade,
// so every failure is still a plain HTTP error. The hub is told about the
// pending admission first, so a late close of an older connection of the same
// account does not write it offline. Without one, the connection is
// upgraded as a guest when guests are allowed and must send user:join first.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			if !deps.Config.AllowGuests {
				logx.Warn("WebSocket request rejected: missing token")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			serveGuest(upgrader, deps, w, r)
			return
		}

		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: invalid token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		account, err := deps.Store.GetUserByID(r.Context(), payload.ID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				logx.Warn("WebSocket request rejected: account not found", "user_id", payload.ID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable, err))
			return
		}

		admission := deps.Hub.ExpectAdmission(account.ID)

		connectedAt := time.Now()
		if err := deps.Store.MarkOnline(r.Context(), account.ID, connectedAt); err != nil {
			admission.Withdraw()
			resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable, err))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", account.ID)
			admission.Withdraw()
			markOfflineAfterFailure(deps, account.ID)
			return
		}

		identity := account.Snapshot()
		client := chat.NewClient(deps.Hub, conn, chat.ClientOptions{
			Identity: &identity,
			Session: &chat.Session{
				Secret: deps.Config.JWTSecret,
				Expiry: payload.Expiry(),
			},
			Admission: admission,
		})

		if err := client.Start(); err != nil {
			logx.Warn("WebSocket connection dropped: hub unavailable", "user_id", account.ID, "error", err)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(chat.CloseGoingAway, "Server is shutting down."),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
			admission.Withdraw()
			markOfflineAfterFailure(deps, account.ID)
			return
		}

		logx.Info("WebSocket connection established", "client_id", client.ID(), "user_id", account.ID)
	}
}

func serveGuest(upgrader websocket.Upgrader, deps *AppDeps, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Error(err, "Failed to upgrade guest connection to WebSocket")
		return
	}

	client := chat.NewClient(deps.Hub, conn, chat.ClientOptions{})
	if err := client.Start(); err != nil {
		_ = conn.Close()
		return
	}

	logx.Info("Guest WebSocket connection established", "client_id", client.ID())
}

// markOfflineAfterFailure undoes the online write of a handshake that never
// produced an admitted connection.
func markOfflineAfterFailure(deps *AppDeps, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	if _, err := deps.Store.MarkOffline(ctx, userID, time.Now()); err != nil {
		logx.Error(err, "Failed to revert online status", "user_id", userID)
	}
}

/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"livechat/internal/app/chat"
	"livechat/internal/app/db"
	"livechat/internal/app/user"
	"livechat/internal/pkg/auth/jwt"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/req"
	"livechat/internal/pkg/resp"
)

// HandleRegister creates an account and signs it in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input user.Registration
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Normalize()
		if customErr := input.Validate(); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		account, err := deps.Store.CreateUser(r.Context(), db.CreateUserParams{
			Username:     input.Username,
			Email:        input.Email,
			PasswordHash: string(hashedPassword),
			Avatar:       user.DefaultAvatar(input.Username),
		})
		if err != nil {
			if dupErr, ok := db.IsDuplicate(err); ok {
				logx.Warn("registration conflict", "field", dupErr.Field, "username", input.Username)
				if dupErr.Field == "email" {
					resp.RespondError(w, r, errs.NewError(errs.ErrEmailTaken))
				} else {
					resp.RespondError(w, r, errs.NewError(errs.ErrUsernameTaken))
				}
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable, err))
			return
		}

		token, _, err := issueToken(deps, account)
		if err != nil {
			logx.Error(err, "register: jwt generation failed", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("User registered", "user_id", account.ID, "username", account.Username)

		resp.RespondCreated(w, r, map[string]any{
			"message": "User registered successfully",
			"token":   token,
			"user":    account.Profile(),
		})
	}
}

// LoginInput defines the JSON body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies user credentials, marks the account online and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		email := user.NormalizeEmail(input.Email)
		if email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingCredentials))
			return
		}

		account, err := deps.Store.GetUserByEmail(r.Context(), email)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				logx.Warn("login: unknown email")
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable, err))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := deps.Store.MarkOnline(r.Context(), account.ID, time.Now()); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable, err))
			return
		}

		token, _, err := issueToken(deps, account)
		if err != nil {
			logx.Error(err, "login: jwt generation failed", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message": "Login successful",
			"token":   token,
			"user":    account.Profile(),
		})
	}
}

// HandleMe returns the profile of the bearer of the token.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, customErr := currentAccount(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": account.Profile(),
		})
	}
}

// HandleLogout marks the account offline and ends its live connection, if any.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		if _, err := deps.Store.MarkOffline(r.Context(), identity.ID, time.Now()); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable, err))
			return
		}

		closed, err := deps.Hub.Disconnect(r.Context(), identity.ID, chat.CloseSessionEnded, "Logged out.")
		if err != nil {
			logx.Warn("logout: could not reach the hub", "user_id", identity.ID, "error", err)
		}

		logx.Info("User logged out", "user_id", identity.ID, "socket_closed", closed)

		resp.RespondSuccess(w, r, map[string]any{
			"message": "Logged out successfully",
		})
	}
}

// currentAccount loads the account named by the request's token.
// A token whose account no longer exists is treated as unauthorized.
func currentAccount(deps *AppDeps, r *http.Request) (user.User, *errs.CustomError) {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	account, err := deps.Store.GetUserByID(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logx.Warn("token refers to a missing account", "user_id", identity.ID)
			return user.User{}, errs.NewError(errs.ErrUnauthorized)
		}
		return user.User{}, errs.NewError(errs.ErrDatabaseUnavailable, err)
	}

	return account, nil
}

func issueToken(deps *AppDeps, account user.User) (string, time.Time, error) {
	payload := &jwt.Payload{
		ID:       account.ID,
		Username: account.Username,
	}
	return jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
}

// tokenFromRequest reads the socket token from ?token= or the Authorization header.
func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return jwt.BearerToken(r)
}

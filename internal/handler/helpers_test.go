package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"livechat/internal/app/chat"
	"livechat/internal/app/db"
	"livechat/internal/app/db/mocks"
	"livechat/internal/app/user"
	"livechat/internal/configs"
	"livechat/internal/pkg/auth/jwt"
)

const testSecret = "handler-test-secret"

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment: configs.EnvDevelopment,
		Port:        3000,
		JWTSecret:   testSecret,
	}
}

// newTestDeps wires a running hub to store and stops it when the test ends.
func newTestDeps(t *testing.T, store db.UserStore) *AppDeps {
	t.Helper()

	hub := chat.NewHub(store)
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})

	return &AppDeps{
		Hub:    hub,
		Config: testConfig(),
		Store:  store,
	}
}

func newMockDeps(t *testing.T) (*AppDeps, *mocks.MockUserStore) {
	t.Helper()
	store := mocks.NewMockUserStore(gomock.NewController(t))
	return newTestDeps(t, store), store
}

func tokenFor(t *testing.T, id, username string) string {
	t.Helper()
	token, _, err := jwt.GenerateToken(&jwt.Payload{ID: id, Username: username}, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

type errorBody struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type authBody struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    user.Profile `json:"user"`
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) authBody {
	t.Helper()
	var body authBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleUser(t *testing.T, password string) user.User {
	t.Helper()

	u := user.User{
		ID:       "6650f1d2c3b4a59687766554",
		Username: "alice",
		Email:    "alice@example.com",
		Avatar:   user.DefaultAvatar("alice"),
	}
	if password != "" {
		u.PasswordHash = hashPassword(t, password)
	}
	return u
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

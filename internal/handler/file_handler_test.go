package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"livechat/internal/app/db"
	"livechat/internal/app/storage"
	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
)

const fakeBucketURL = "https://cdn.example.com/livechat"

// fakeStorage is an in-memory AvatarStorage.
type fakeStorage struct {
	storage.PublicLocator

	mu      sync.Mutex
	objects map[string]string // key -> mime type
	removed map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		PublicLocator: storage.NewPublicLocator(fakeBucketURL),
		objects:       map[string]string{},
		removed:       map[string]bool{},
	}
}

func (s *fakeStorage) put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = "image/png"
}

func (s *fakeStorage) deleted(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed[key]
}

func (s *fakeStorage) PresignUpload(_ context.Context, key string, _ string, _ int64, _ time.Duration) (string, error) {
	return s.PublicURL(key) + "?X-Amz-Signature=test", nil
}

func (s *fakeStorage) Upload(_ context.Context, key string, mimeType string, body io.Reader) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = mimeType
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.removed[key] = true
	return nil
}

func (s *fakeStorage) GetObjectMetadata(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mimeType, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return map[string]string{"Content-Type": mimeType}, nil
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestPresignAvatarStorageDisabled(t *testing.T) {
	deps, _ := newMockDeps(t)

	w := doJSON(t, Router(deps), http.MethodPost, "/api/auth/avatar/presign", tokenFor(t, "id-1", "alice"), map[string]any{
		"fileName": "me.png", "mimeType": "image/png", "fileSize": 1024,
	})

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, errs.ErrStorageDisabled, decodeError(t, w).Code)
}

func TestPresignAvatar(t *testing.T) {
	req := require.New(t)
	deps, store := newMockDeps(t)
	deps.Storage = newFakeStorage()
	account := sampleUser(t, "")
	token := tokenFor(t, account.ID, account.Username)

	store.EXPECT().GetUserByID(gomock.Any(), account.ID).Return(account, nil).Times(3)

	w := doJSON(t, Router(deps), http.MethodPost, "/api/auth/avatar/presign", token, map[string]any{
		"fileName": "me.png", "mimeType": "image/png", "fileSize": 1024,
	})
	req.Equal(http.StatusOK, w.Code)

	var body struct {
		UploadURL string `json:"uploadUrl"`
		AvatarURL string `json:"avatarUrl"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.True(strings.HasPrefix(body.AvatarURL, fakeBucketURL+"/avatars/"+account.ID+"/"))
	req.True(strings.HasSuffix(body.AvatarURL, ".png"))
	req.True(strings.HasPrefix(body.UploadURL, body.AvatarURL))

	w = doJSON(t, Router(deps), http.MethodPost, "/api/auth/avatar/presign", token, map[string]any{
		"fileName": "me.exe", "mimeType": "application/octet-stream", "fileSize": 1024,
	})
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(errs.ErrInvalidFileType, decodeError(t, w).Code)

	w = doJSON(t, Router(deps), http.MethodPost, "/api/auth/avatar/presign", token, map[string]any{
		"fileName": "me.png", "mimeType": "image/png", "fileSize": storage.MaxAvatarSize + 1,
	})
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(errs.ErrFileSizeTooLarge, decodeError(t, w).Code)
}

func multipartAvatar(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAvatar(t *testing.T) {
	req := require.New(t)
	deps, store := newMockDeps(t)
	fs := newFakeStorage()
	deps.Storage = fs
	account := sampleUser(t, "")

	store.EXPECT().GetUserByID(gomock.Any(), account.ID).Return(account, nil)
	store.EXPECT().
		UpdateProfile(gomock.Any(), account.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, params db.UpdateProfileParams) (user.User, error) {
			updated := account
			updated.Avatar = *params.Avatar
			return updated, nil
		})

	body, contentType := multipartAvatar(t, "me.png", pngHeader)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/avatar", body)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, account.ID, account.Username))
	w := httptest.NewRecorder()
	Router(deps).ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)

	var resp struct {
		AvatarURL string       `json:"avatarUrl"`
		User      user.Profile `json:"user"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal(resp.AvatarURL, resp.User.Avatar)

	key, ok := fs.KeyFromURL(resp.AvatarURL)
	req.True(ok)
	meta, err := fs.GetObjectMetadata(context.Background(), key)
	req.NoError(err)
	req.Equal("image/png", meta["Content-Type"])
}

func TestUploadAvatarRejectsDisguisedFile(t *testing.T) {
	deps, store := newMockDeps(t)
	deps.Storage = newFakeStorage()
	account := sampleUser(t, "")

	store.EXPECT().GetUserByID(gomock.Any(), account.ID).Return(account, nil)

	body, contentType := multipartAvatar(t, "me.png", []byte("#!/bin/sh\necho not an image\n"))
	r := httptest.NewRequest(http.MethodPost, "/api/auth/avatar", body)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, account.ID, account.Username))
	w := httptest.NewRecorder()
	Router(deps).ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, errs.ErrInvalidFileType, decodeError(t, w).Code)
}

package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"livechat/internal/pkg/errs"
)

func TestValidateAvatarType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		wantCode int
	}{
		{name: "png", fileName: "me.png", mimeType: "image/png"},
		{name: "upper case jpeg", fileName: "ME.JPG", mimeType: "IMAGE/JPEG"},
		{name: "svg rejected", fileName: "me.svg", mimeType: "image/svg+xml", wantCode: errs.ErrInvalidFileType},
		{name: "extension mismatch", fileName: "me.png", mimeType: "image/gif", wantCode: errs.ErrInvalidFileType},
		{name: "no extension", fileName: "avatar", mimeType: "image/png", wantCode: errs.ErrInvalidFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAvatarType(tt.fileName, tt.mimeType)
			if tt.wantCode == 0 {
				require.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			require.Equal(t, tt.wantCode, err.Code)
		})
	}
}

func TestValidateAvatarSize(t *testing.T) {
	require.Nil(t, ValidateAvatarSize(1024))
	require.Equal(t, errs.ErrInvalidParams, ValidateAvatarSize(0).Code)

	tooLarge := ValidateAvatarSize(MaxAvatarSize + 1)
	require.Equal(t, errs.ErrFileSizeTooLarge, tooLarge.Code)
	require.Equal(t, "File is too large (max 5 MB).", tooLarge.Message)
}

func TestAvatarKey(t *testing.T) {
	key := AvatarKey("user-1", "Photo.PNG")
	require.True(t, strings.HasPrefix(key, "avatars/user-1/"))
	require.True(t, strings.HasSuffix(key, ".png"))
	require.True(t, OwnsAvatarKey("user-1", key))
	require.False(t, OwnsAvatarKey("user-10", key))
	require.NotEqual(t, key, AvatarKey("user-1", "Photo.PNG"))
}

func TestPublicLocator(t *testing.T) {
	locator := NewPublicLocator("https://cdn.example.com/")

	url := locator.PublicURL("avatars/u1/a.png")
	require.Equal(t, "https://cdn.example.com/avatars/u1/a.png", url)

	key, ok := locator.KeyFromURL(url)
	require.True(t, ok)
	require.Equal(t, "avatars/u1/a.png", key)

	key, ok = locator.KeyFromURL("https://cdn.example.com/avatars/u1/a%20b.png?v=2")
	require.True(t, ok)
	require.Equal(t, "avatars/u1/a b.png", key)

	_, ok = locator.KeyFromURL("https://api.dicebear.com/7.x/avataaars/svg?seed=alice")
	require.False(t, ok)

	_, ok = locator.KeyFromURL("https://cdn.example.com/../secret")
	require.False(t, ok)

	_, ok = NewPublicLocator("").KeyFromURL("https://cdn.example.com/avatars/u1/a.png")
	require.False(t, ok)
}

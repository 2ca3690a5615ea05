package storage

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"livechat/internal/pkg/errs"
)

const (
	// MaxAvatarSizeMB is the maximum allowed avatar size in megabytes.
	MaxAvatarSizeMB = 5

	// MaxAvatarSize is the maximum allowed avatar size in bytes.
	MaxAvatarSize = MaxAvatarSizeMB * 1024 * 1024

	// PresignedURLDuration is how long an upload URL stays valid.
	PresignedURLDuration = 5 * time.Minute

	avatarKeyPrefix = "avatars"
)

// allowedMIMETypes is the set of accepted avatar content types.
var allowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// extToMIME maps file extensions to the content type they must be uploaded with.
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateAvatarSize checks the declared size of an avatar upload.
func ValidateAvatarSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAvatarSize {
		return errs.NewError(errs.ErrFileSizeTooLarge, MaxAvatarSizeMB)
	}

	return nil
}

// ValidateAvatarType checks that the file name and MIME type describe the same allowed image type.
func ValidateAvatarType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)
	if _, ok := allowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrInvalidFileType)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expectedMIME, ok := extToMIME[ext]
	if !ok || expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrInvalidFileType)
	}

	return nil
}

// AvatarKey returns a fresh object key for a user's avatar, keeping the file extension.
func AvatarKey(userID string, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(avatarKeyPrefix, userID, uuid.NewString()+ext)
}

// OwnsAvatarKey reports whether key lies in the user's avatar folder.
func OwnsAvatarKey(userID string, key string) bool {
	return strings.HasPrefix(key, path.Join(avatarKeyPrefix, userID)+"/")
}

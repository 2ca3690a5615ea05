package handler

import (
	"livechat/internal/app/chat"
	"livechat/internal/app/db"
	"livechat/internal/app/storage"
	"livechat/internal/configs"
)

// AppDeps bundles everything the HTTP layer needs.
type AppDeps struct {
	Hub    *chat.Hub
	Config *configs.AppConfig
	Store  db.UserStore

	// Storage is nil when avatar uploads are not configured.
	Storage storage.AvatarStorage
}

// avatarKey returns the bucket key of an avatar URL served from our storage.
func (deps *AppDeps) avatarKey(avatarURL string) (string, bool) {
	if deps.Storage == nil || avatarURL == "" {
		return "", false
	}
	return deps.Storage.KeyFromURL(avatarURL)
}

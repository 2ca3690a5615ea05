package handler

import (
	"io"
	"net/http"

	"livechat/internal/app/db"
	"livechat/internal/app/storage"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/req"
	"livechat/internal/pkg/resp"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// PresignAvatarInput defines the JSON input structure for generating an avatar upload URL.
type PresignAvatarInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignAvatarURL returns a time-limited URL the browser can PUT the avatar
// to, together with the public URL to save on the profile afterwards.
func HandlePresignAvatarURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageDisabled))
			return
		}

		account, customErr := currentAccount(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateAvatarSize(input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateAvatarType(input.FileName, input.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := storage.AvatarKey(account.ID, input.FileName)

		url, err := deps.Storage.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "avatar presign failed", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"uploadUrl": url,
			"avatarUrl": deps.Storage.PublicURL(key),
		})
	}
}

// HandleUploadAvatar receives the avatar as a multipart "file" field, stores it
// and makes it the account's avatar in one step.
func HandleUploadAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageDisabled))
			return
		}

		account, customErr := currentAccount(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		defer file.Close()

		if customErr := storage.ValidateAvatarSize(header.Size); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		head := make([]byte, sniffLen)
		n, err := io.ReadFull(file, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			resp.RespondError(w, r, errs.NewError(errs.ErrFormParseFailed))
			return
		}
		mimeType := http.DetectContentType(head[:n])

		if customErr := storage.ValidateAvatarType(header.Filename, mimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFormParseFailed))
			return
		}

		key := storage.AvatarKey(account.ID, header.Filename)
		if err := deps.Storage.Upload(r.Context(), key, mimeType, file); err != nil {
			logx.Error(err, "avatar upload failed", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		avatarURL := deps.Storage.PublicURL(key)
		updated, customErr := saveProfile(r.Context(), deps, account, db.UpdateProfileParams{Avatar: &avatarURL})
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message":   "Avatar updated successfully",
			"avatarUrl": avatarURL,
			"user":      updated.Profile(),
		})
	}
}

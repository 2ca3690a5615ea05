package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"livechat/internal/app/db"
	"livechat/internal/app/storage"
	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/req"
	"livechat/internal/pkg/resp"
)

const avatarDeleteTimeout = 10 * time.Second

// HandleUpdateProfile edits the bio and avatar of the current account and
// pushes the new presence snapshot to connected clients.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input user.ProfileUpdate
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// An empty avatar resets to the generated default.
		resetAvatar := input.Avatar != nil && *input.Avatar == ""
		if resetAvatar {
			input.Avatar = nil
		}

		if customErr := input.Validate(); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, customErr := currentAccount(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		switch {
		case resetAvatar:
			fallback := user.DefaultAvatar(account.Username)
			input.Avatar = &fallback
		case input.Avatar != nil:
			if customErr := verifyBucketAvatar(r.Context(), deps, account.ID, *input.Avatar); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
		}

		updated, customErr := saveProfile(r.Context(), deps, account, db.UpdateProfileParams{
			Bio:    input.Bio,
			Avatar: input.Avatar,
		})
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message": "Profile updated successfully",
			"user":    updated.Profile(),
		})
	}
}

// verifyBucketAvatar checks that an avatar URL pointing into our bucket names an
// existing object uploaded by this account. External URLs are accepted as is.
func verifyBucketAvatar(ctx context.Context, deps *AppDeps, userID string, avatarURL string) *errs.CustomError {
	key, ok := deps.avatarKey(avatarURL)
	if !ok {
		return nil
	}

	if !storage.OwnsAvatarKey(userID, key) {
		logx.Warn("profile: avatar key owned by another account", "user_id", userID, "key", key)
		return errs.NewError(errs.ErrInvalidAvatar)
	}

	if _, err := deps.Storage.GetObjectMetadata(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return errs.NewError(errs.ErrInvalidAvatar)
		}
		logx.Error(err, "profile: avatar lookup failed", "key", key)
		return errs.NewError(errs.ErrFileStorageFailed)
	}

	return nil
}

// saveProfile persists params, removes a replaced bucket avatar in the
// background and refreshes the account's entry in the presence list.
func saveProfile(ctx context.Context, deps *AppDeps, account user.User, params db.UpdateProfileParams) (user.User, *errs.CustomError) {
	updated, err := deps.Store.UpdateProfile(ctx, account.ID, params)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return user.User{}, errs.NewError(errs.ErrUnauthorized)
		}
		return user.User{}, errs.NewError(errs.ErrDatabaseUnavailable, err)
	}

	if oldKey, ok := deps.avatarKey(account.Avatar); ok && account.Avatar != updated.Avatar {
		go func(k string) {
			ctx, cancel := context.WithTimeout(context.Background(), avatarDeleteTimeout)
			defer cancel()
			if err := deps.Storage.Delete(ctx, k); err != nil {
				logx.Warn("failed to delete replaced avatar", "key", k, "error", err)
			}
		}(oldKey)
	}

	if err := deps.Hub.RefreshProfile(updated.Snapshot()); err != nil {
		logx.Warn("presence refresh skipped", "user_id", updated.ID, "error", err)
	}

	return updated, nil
}

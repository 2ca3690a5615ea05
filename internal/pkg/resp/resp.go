/*
Package resp provides helper functions for sending HTTP JSON responses.

Successful responses carry the payload itself as the body; failures carry an
ErrorResponse with the business code and a client-facing message, sent with the
HTTP status the errs package assigns to that code.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Code is the business error code (see errs package).
	Code int `json:"code"`

	// Error is the client-friendly error message.
	Error string `json:"error"`
}

// RespondJSON sets the Content-Type and writes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	body, err := json.Marshal(payload)
	if err != nil {
		logx.FromRequest(r).Error().
			Err(err).
			Int("http_status", httpStatus).
			Msg("Error encoding JSON response")

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

// RespondSuccess sends payload with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, payload any) {
	RespondJSON(w, r, http.StatusOK, payload)
}

// RespondCreated sends payload with HTTP 201.
func RespondCreated(w http.ResponseWriter, r *http.Request, payload any) {
	RespondJSON(w, r, http.StatusCreated, payload)
}

// RespondError sends the error body with the status carried by customErr.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, ErrorResponse{
		Code:  customErr.Code,
		Error: customErr.Message,
	})
}

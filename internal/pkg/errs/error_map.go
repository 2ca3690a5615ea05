/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},

	// 2xxx: Realtime Chat Errors
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message cannot be empty."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrNotJoined:             {Code: ErrNotJoined, Message: "Join the chat before sending messages."},
	ErrAlreadyJoined:         {Code: ErrAlreadyJoined, Message: "You have already joined the chat."},
	ErrUnsupportedEvent:      {Code: ErrUnsupportedEvent, Message: "Unsupported event: %s."},

	// 3xxx: Validation, Account and Session Errors
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Username must be between 3 and 20 characters", Status: http.StatusBadRequest},
	ErrInvalidEmail:       {Code: ErrInvalidEmail, Message: "Please provide a valid email address", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be at least 6 characters long", Status: http.StatusBadRequest},
	ErrBioTooLong:         {Code: ErrBioTooLong, Message: "Bio must be less than 200 characters", Status: http.StatusBadRequest},
	ErrInvalidAvatar:      {Code: ErrInvalidAvatar, Message: "Avatar must be a valid URL", Status: http.StatusBadRequest},
	ErrMissingCredentials: {Code: ErrMissingCredentials, Message: "Email and password are required", Status: http.StatusBadRequest},
	ErrEmailTaken:         {Code: ErrEmailTaken, Message: "Email already registered", Status: http.StatusBadRequest},
	ErrUsernameTaken:      {Code: ErrUsernameTaken, Message: "Username already taken", Status: http.StatusBadRequest},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid credentials", Status: http.StatusUnauthorized},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 4xxx: Avatar Storage Errors
	ErrStorageDisabled:   {Code: ErrStorageDisabled, Message: "Avatar uploads are not enabled.", Status: http.StatusNotFound},
	ErrInvalidFileType:   {Code: ErrInvalidFileType, Message: "Only JPEG, PNG, WebP and GIF images are allowed.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:  {Code: ErrFileSizeTooLarge, Message: "File is too large (max %d MB).", Status: http.StatusBadRequest},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},

	// 5xxx: Internal System Errors
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrDatabaseUnavailable: {Code: ErrDatabaseUnavailable, Message: "Database is unavailable. Please try again later.", Status: http.StatusInternalServerError},
}

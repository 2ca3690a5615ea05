/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006
)

// 2xxx: Realtime Chat Errors (delivered as socket error frames)
const (
	// ErrMessageContentEmpty indicates that a chat message had no visible content.
	ErrMessageContentEmpty = 2201

	// ErrMessageContentTooLong indicates that the user's message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrNotJoined indicates that the connection tried to chat before being admitted.
	ErrNotJoined = 2203

	// ErrAlreadyJoined indicates a repeated join on an admitted connection.
	ErrAlreadyJoined = 2204

	// ErrUnsupportedEvent indicates an inbound frame with an unknown event name.
	ErrUnsupportedEvent = 2205
)

// 3xxx: Validation, Account and Session Errors
const (
	// ErrInvalidUsername indicates a username outside the allowed length.
	ErrInvalidUsername = 3001

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = 3002

	// ErrInvalidPassword indicates a password that is too short or too long.
	ErrInvalidPassword = 3003

	// ErrBioTooLong indicates a bio exceeding the maximum length.
	ErrBioTooLong = 3004

	// ErrInvalidAvatar indicates an avatar value that is not a URL.
	ErrInvalidAvatar = 3005

	// ErrMissingCredentials indicates a login request without email or password.
	ErrMissingCredentials = 3006

	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = 3101

	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = 3102

	// ErrInvalidCredentials indicates a login with unknown email or wrong password.
	ErrInvalidCredentials = 3201

	// ErrUnauthorized indicates a missing, invalid or expired bearer token.
	ErrUnauthorized = 3202
)

// 4xxx: Avatar Storage Errors
const (
	// ErrStorageDisabled indicates that no object storage is configured.
	ErrStorageDisabled = 4001

	// ErrInvalidFileType indicates an avatar file that is not an allowed image type.
	ErrInvalidFileType = 4002

	// ErrFileSizeTooLarge indicates an avatar file above the size limit.
	ErrFileSizeTooLarge = 4003

	// ErrFileStorageFailed indicates the object storage rejected or failed the operation.
	ErrFileStorageFailed = 4004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrDatabaseUnavailable indicates the credential store could not be reached.
	ErrDatabaseUnavailable = 5001
)

package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsDetails(t *testing.T) {
	customErr := NewError(ErrFileSizeTooLarge, 5)
	require.Equal(t, "File is too large (max 5 MB).", customErr.Message)
	require.Equal(t, http.StatusBadRequest, customErr.Status)

	// The template is left untouched.
	require.Equal(t, "File is too large (max %d MB).", errorMap[ErrFileSizeTooLarge].Message)
}

func TestNewErrorDefaults(t *testing.T) {
	require.Equal(t, http.StatusOK, NewError(ErrNotJoined).Status)

	unknown := NewError(987654)
	require.Equal(t, ErrUnknown, unknown.Code)
	require.Equal(t, http.StatusInternalServerError, unknown.Status)

	internal := NewError(ErrDatabaseUnavailable, errors.New("dial tcp: refused"))
	require.Equal(t, "Database is unavailable. Please try again later.", internal.Message)
}

func TestEveryCodeHasMessage(t *testing.T) {
	for code, e := range errorMap {
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message, "code %d", code)
	}
}

//go:generate go run go.uber.org/mock/mockgen -source=db.go -destination=mocks/mock_store.go -package=mocks

/*
Package db is the credential store: it persists accounts together with their
online flag and last-seen timestamp.

The backend is chosen by the scheme of the connection string: MongoDB
(mongodb://, mongodb+srv://), PostgreSQL (postgres://, postgresql://) with
embedded goose migrations, or an embedded Badger directory (badger://<dir>).
*/
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"livechat/internal/app/user"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("db: user not found")

	// ErrUnsupportedScheme is returned by Open for unknown connection string schemes.
	ErrUnsupportedScheme = errors.New("db: unsupported connection string scheme")
)

// DuplicateError reports a unique constraint violation on Field ("email" or "username").
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("db: duplicate %s", e.Field)
}

// IsDuplicate reports whether err is a *DuplicateError and returns it.
func IsDuplicate(err error) (*DuplicateError, bool) {
	var dupErr *DuplicateError
	if errors.As(err, &dupErr) {
		return dupErr, true
	}
	return nil, false
}

// CreateUserParams holds the fields of a new account.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
}

// UpdateProfileParams holds a profile edit. Nil fields are left untouched.
type UpdateProfileParams struct {
	Bio    *string
	Avatar *string
}

// UserStore is the credential store used by the HTTP handlers and the chat hub.
type UserStore interface {
	// CreateUser inserts a new offline account. Unique violations return *DuplicateError.
	CreateUser(ctx context.Context, params CreateUserParams) (user.User, error)

	// GetUserByID returns ErrNotFound if no account has this id.
	GetUserByID(ctx context.Context, id string) (user.User, error)

	// GetUserByEmail returns ErrNotFound if no account has this email.
	GetUserByEmail(ctx context.Context, email string) (user.User, error)

	// UpdateProfile applies params and returns the updated account.
	UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (user.User, error)

	// MarkOnline sets the online flag and last-seen to at.
	MarkOnline(ctx context.Context, id string, at time.Time) error

	// MarkOffline clears the online flag and sets last-seen to at, unless the
	// stored last-seen is already newer than at. It reports whether the write applied.
	MarkOffline(ctx context.Context, id string, at time.Time) (bool, error)

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}

// Backend names the storage engine selected from a connection string.
type Backend string

const (
	BackendMongo    Backend = "mongodb"
	BackendPostgres Backend = "postgres"
	BackendBadger   Backend = "badger"
)

// BackendFor returns the backend a connection string points at.
func BackendFor(dsn string) (Backend, error) {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, dsn)
	}

	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "badger":
		return BackendBadger, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// Options carries backend settings that are not part of the connection string.
type Options struct {
	// DatabaseName is the MongoDB database used when the URI has no path.
	DatabaseName string
}

// Open connects to the backend named by dsn and prepares its schema or indexes.
func Open(ctx context.Context, dsn string, opts Options) (UserStore, error) {
	backend, err := BackendFor(dsn)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendMongo:
		return NewMongoStore(ctx, dsn, opts.DatabaseName)
	case BackendPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return NewBadgerStore(badgerDir(dsn))
	}
}

// badgerDir extracts the directory from a badger:// connection string.
// Both badger:///abs/path and badger://relative/path are accepted.
func badgerDir(dsn string) string {
	raw := strings.TrimPrefix(dsn, "badger://")
	if u, err := url.Parse(dsn); err == nil && u.Host == "" && u.Path != "" {
		return u.Path
	}
	return raw
}

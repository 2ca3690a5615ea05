package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"livechat/internal/app/user"
	"livechat/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const userColumns = `id::text, username, email, password_hash, avatar, bio, is_online, last_seen, created_at`

// PostgresStore is the PostgreSQL implementation of UserStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and applies pending migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// newPool initializes a PostgreSQL connection pool and executes database migrations.
func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(ctx, sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully.")
	return nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.Bio,
		&u.IsOnline,
		&u.LastSeen,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, params CreateUserParams) (user.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, avatar)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.NewString(), params.Username, params.Email, params.PasswordHash, params.Avatar,
	)

	u, err := scanUser(row)
	if err != nil {
		return user.User{}, postgresDuplicate(err)
	}
	return u, nil
}

func (s *PostgresStore) getBy(ctx context.Context, column, value string) (user.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, ErrNotFound
	}
	return s.getBy(ctx, "id", id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, ErrNotFound
	}

	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users
		 SET bio = COALESCE($2, bio), avatar = COALESCE($3, avatar)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, params.Bio, params.Avatar,
	))
}

func (s *PostgresStore) MarkOnline(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_online = TRUE, last_seen = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkOffline(ctx context.Context, id string, at time.Time) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_online = FALSE, last_seen = $2 WHERE id = $1 AND last_seen <= $2`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"livechat/internal/app/user"
)

const (
	badgerIDPrefix    = "user:id:"
	badgerEmailPrefix = "user:email:"
	badgerNamePrefix  = "user:name:"

	badgerMaxRetries = 3
)

// badgerRecord is the value stored under user:id:<id>.
// The email and username keys hold the id only.
type badgerRecord struct {
	ID           string    `bson:"id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Avatar       string    `bson:"avatar"`
	Bio          string    `bson:"bio"`
	IsOnline     bool      `bson:"isOnline"`
	LastSeen     time.Time `bson:"lastSeen"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (r badgerRecord) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Avatar:       r.Avatar,
		Bio:          r.Bio,
		IsOnline:     r.IsOnline,
		LastSeen:     r.LastSeen,
		CreatedAt:    r.CreatedAt,
	}
}

// BadgerStore is an embedded UserStore backed by BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a Badger database in dir. An empty dir opens an in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: bdb}, nil
}

func idKey(id string) []byte { return []byte(badgerIDPrefix + id) }

func emailKey(email string) []byte { return []byte(badgerEmailPrefix + email) }

func usernameKey(name string) []byte { return []byte(badgerNamePrefix + name) }

func readRecord(txn *badger.Txn, id string) (badgerRecord, error) {
	var rec badgerRecord

	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}

	err = item.Value(func(val []byte) error {
		return bson.Unmarshal(val, &rec)
	})
	return rec, err
}

func writeRecord(txn *badger.Txn, rec badgerRecord) error {
	data, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(idKey(rec.ID), data)
}

// readIndex resolves a secondary key to the id it points at.
func readIndex(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range badgerMaxRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BadgerStore) CreateUser(_ context.Context, params CreateUserParams) (user.User, error) {
	now := time.Now().UTC()
	rec := badgerRecord{
		ID:           uuid.NewString(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Avatar:       params.Avatar,
		LastSeen:     now,
		CreatedAt:    now,
	}

	err := s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(rec.Email)); err == nil {
			return &DuplicateError{Field: "email"}
		}
		if _, err := txn.Get(usernameKey(rec.Username)); err == nil {
			return &DuplicateError{Field: "username"}
		}

		if err := writeRecord(txn, rec); err != nil {
			return err
		}
		if err := txn.Set(emailKey(rec.Email), []byte(rec.ID)); err != nil {
			return err
		}
		return txn.Set(usernameKey(rec.Username), []byte(rec.ID))
	})
	if err != nil {
		return user.User{}, err
	}
	return rec.toUser(), nil
}

func (s *BadgerStore) GetUserByID(_ context.Context, id string) (user.User, error) {
	var rec badgerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, id)
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return rec.toUser(), nil
}

func (s *BadgerStore) getByIndex(key []byte) (user.User, error) {
	var rec badgerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := readIndex(txn, key)
		if err != nil {
			return err
		}
		rec, err = readRecord(txn, id)
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return rec.toUser(), nil
}

func (s *BadgerStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return s.getByIndex(emailKey(email))
}

func (s *BadgerStore) UpdateProfile(_ context.Context, id string, params UpdateProfileParams) (user.User, error) {
	var rec badgerRecord
	err := s.update(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, id)
		if err != nil {
			return err
		}

		if params.Bio != nil {
			rec.Bio = *params.Bio
		}
		if params.Avatar != nil {
			rec.Avatar = *params.Avatar
		}
		return writeRecord(txn, rec)
	})
	if err != nil {
		return user.User{}, err
	}
	return rec.toUser(), nil
}

func (s *BadgerStore) MarkOnline(_ context.Context, id string, at time.Time) error {
	return s.update(func(txn *badger.Txn) error {
		rec, err := readRecord(txn, id)
		if err != nil {
			return err
		}

		rec.IsOnline = true
		rec.LastSeen = at.UTC()
		return writeRecord(txn, rec)
	})
}

func (s *BadgerStore) MarkOffline(_ context.Context, id string, at time.Time) (bool, error) {
	applied := false
	err := s.update(func(txn *badger.Txn) error {
		applied = false

		rec, err := readRecord(txn, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.LastSeen.After(at) {
			return nil
		}

		rec.IsOnline = false
		rec.LastSeen = at.UTC()
		applied = true
		return writeRecord(txn, rec)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("db: badger database is closed")
	}
	return nil
}

func (s *BadgerStore) Close(context.Context) error {
	return s.db.Close()
}

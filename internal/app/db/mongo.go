package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"livechat/internal/app/user"
)

const (
	// DefaultMongoDatabase is used when neither the URI nor the options name a database.
	DefaultMongoDatabase = "livechat"

	usersCollection = "users"
)

// userDocument is the users collection schema.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash"`
	Avatar       string        `bson:"avatar"`
	Bio          string        `bson:"bio"`
	IsOnline     bool          `bson:"isOnline"`
	LastSeen     time.Time     `bson:"lastSeen"`
	CreatedAt    time.Time     `bson:"createdAt"`
}

func (d userDocument) toUser() user.User {
	return user.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Avatar:       d.Avatar,
		Bio:          d.Bio,
		IsOnline:     d.IsOnline,
		LastSeen:     d.LastSeen,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoStore is the MongoDB implementation of UserStore.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStore connects to uri, pings the primary and ensures the unique indexes.
func NewMongoStore(ctx context.Context, uri, databaseName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	name := mongoDatabaseName(uri, databaseName)
	store := &MongoStore{
		client: client,
		users:  client.Database(name).Collection(usersCollection),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return store, nil
}

// mongoDatabaseName prefers the database in the URI path, then the configured name.
func mongoDatabaseName(uri, fallback string) string {
	_, rest, _ := strings.Cut(uri, "://")
	if _, path, ok := strings.Cut(rest, "/"); ok {
		name, _, _ := strings.Cut(path, "?")
		if name != "" {
			return name
		}
	}
	if fallback != "" {
		return fallback
	}
	return DefaultMongoDatabase
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_1"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_1"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (user.User, error) {
	var doc userDocument
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return doc.toUser(), nil
}

func (s *MongoStore) CreateUser(ctx context.Context, params CreateUserParams) (user.User, error) {
	now := time.Now().UTC()
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Avatar:       params.Avatar,
		LastSeen:     now,
		CreatedAt:    now,
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return user.User{}, mongoDuplicate(err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (user.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (user.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, ErrNotFound
	}

	set := bson.D{}
	if params.Bio != nil {
		set = append(set, bson.E{Key: "bio", Value: *params.Bio})
	}
	if params.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *params.Avatar})
	}
	if len(set) == 0 {
		return s.GetUserByID(ctx, id)
	}

	var doc userDocument
	err = s.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return doc.toUser(), nil
}

func (s *MongoStore) MarkOnline(ctx context.Context, id string, at time.Time) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "isOnline", Value: true},
			{Key: "lastSeen", Value: at.UTC()},
		}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkOffline(ctx context.Context, id string, at time.Time) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := s.users.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: oid},
			{Key: "lastSeen", Value: bson.D{{Key: "$lte", Value: at.UTC()}}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "isOnline", Value: false},
			{Key: "lastSeen", Value: at.UTC()},
		}}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

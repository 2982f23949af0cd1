// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/normalize"
)

var (
	// ErrUserExists is returned when registration collides with an existing
	// username or email. Callers branch on this value rather than on a
	// database-specific error.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when a lookup matches no user.
	ErrUserNotFound = errors.New("user not found")
)

// UsersStore performs user DB operations and doubles as the account
// directory backing the roster broadcast.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with an already-hashed password.
// Username and email are stored in normalized form.
func (u *UsersStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (*User, error) {
	now := time.Now()
	user := &User{
		Username:  normalize.Username(username),
		Email:     normalize.Email(email),
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// unique index violation on username or email
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User

	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

// AllUsernames returns the usernames of every known account. It backs the
// roster broadcast, which intentionally lists all accounts rather than only
// currently-online users.
func (u *UsersStore) AllUsernames(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"username": 1})

	cursor, err := u.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Username string `bson:"username"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	usernames := make([]string, 0, len(docs))
	for _, d := range docs {
		usernames = append(usernames, d.Username)
	}
	return usernames, nil
}

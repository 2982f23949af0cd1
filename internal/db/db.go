// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the collections the chat server uses.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and returns a
// Client bound to the named database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on. Username and email
// are both unique: the email is the login key, the username is the routing
// and conversation key.
func (c *Client) CreateIndexes(ctx context.Context) error {
	usersIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"email": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    map[string]int{"username": 1},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := c.UsersCollection().Indexes().CreateMany(ctx, usersIndexes)
	if err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{
			// Composite index used by the conversation history query.
			Keys: map[string]int{"from_user": 1, "to_user": 1, "sent_at": 1},
		},
		{
			// Used by the recent-conversations aggregation sort.
			Keys: map[string]int{"sent_at": -1},
		},
	}

	_, err = c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes)
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}

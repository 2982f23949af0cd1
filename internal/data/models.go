package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to the users collection. Username is the unique routing and
// conversation key; email is the login key.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Username  string        `bson:"username"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// Message maps to the messages collection. Messages are append-only: once
// stored they are never mutated or deleted.
type Message struct {
	ID       bson.ObjectID `bson:"_id,omitempty"`
	FromUser string        `bson:"from_user" json:"fromUser"`
	ToUser   string        `bson:"to_user" json:"toUser"`
	Text     string        `bson:"text" json:"text"`
	SentAt   time.Time     `bson:"sent_at" json:"createdAt"`
}

// Conversation summarizes a recent chat partner for the conversation list.
type Conversation struct {
	Username      string    `json:"username"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/normalize"
)

// MessagesStore is the durable, append-only message log. Messages are
// queryable by the unordered pair of usernames forming a conversation.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// SaveMessage appends a message and returns the stored record. The sentAt
// timestamp is the server time at call entry, supplied by the hub.
func (m *MessagesStore) SaveMessage(ctx context.Context, fromUser, toUser, text string, sentAt time.Time) (*Message, error) {
	msg := &Message{
		FromUser: normalize.Username(fromUser),
		ToUser:   normalize.Username(toUser),
		Text:     text,
		SentAt:   sentAt,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetMessageHistory returns every message between two users, oldest first.
// The conversation key is the unordered pair, so both directions match.
// There is no pagination; the result set is bounded only by the conversation
// itself.
func (m *MessagesStore) GetMessageHistory(ctx context.Context, userA, userB string) ([]*Message, error) {
	a := normalize.Username(userA)
	b := normalize.Username(userB)

	filter := bson.M{
		"$or": bson.A{
			bson.M{"from_user": a, "to_user": b},
			bson.M{"from_user": b, "to_user": a},
		},
	}

	opts := options.Find().SetSort(bson.M{"sent_at": 1})

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetRecentChats aggregates the user's conversation partners with the last
// message exchanged, most recent conversation first.
func (m *MessagesStore) GetRecentChats(ctx context.Context, username string, limit int64) ([]*Conversation, error) {
	username = normalize.Username(username)

	pipeline := mongo.Pipeline{
		// messages where the user appears on either side
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "from_user", Value: username}},
				bson.D{{Key: "to_user", Value: username}},
			}},
		}}},

		// oldest first so $last picks the newest message per group
		bson.D{{Key: "$sort", Value: bson.D{{Key: "sent_at", Value: 1}}}},

		// group by conversation partner, keeping the last message per group
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "partner", Value: bson.D{
					{Key: "$cond", Value: bson.A{
						bson.D{{Key: "$eq", Value: bson.A{"$from_user", username}}},
						"$to_user",
						"$from_user",
					}},
				}},
			}},
			{Key: "last_message", Value: bson.D{{Key: "$last", Value: "$text"}}},
			{Key: "last_message_at", Value: bson.D{{Key: "$last", Value: "$sent_at"}}},
		}}},

		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID struct {
			Partner string `bson:"partner"`
		} `bson:"_id"`
		LastMessage   string    `bson:"last_message"`
		LastMessageAt time.Time `bson:"last_message_at"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	var conversations []*Conversation
	for _, result := range results {
		conversations = append(conversations, &Conversation{
			Username:      result.ID.Partner,
			LastMessage:   result.LastMessage,
			LastMessageAt: result.LastMessageAt,
		})
	}

	return conversations, nil
}

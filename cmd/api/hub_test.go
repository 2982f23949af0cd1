package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/data"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/normalize"
)

// fakeDirectory provides the account-directory subset used by Announce.
type fakeDirectory struct {
	usernames []string
	err       error
}

func (f *fakeDirectory) AllUsernames(ctx context.Context) ([]string, error) {
	return f.usernames, f.err
}

// memoryLog is an in-memory messageLog used to exercise the hub without a
// database.
type memoryLog struct {
	mu       sync.Mutex
	msgs     []*data.Message
	failSave bool
}

func (l *memoryLog) SaveMessage(ctx context.Context, fromUser, toUser, text string, sentAt time.Time) (*data.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failSave {
		return nil, errors.New("store unavailable")
	}
	m := &data.Message{
		ID:       bson.NewObjectID(),
		FromUser: normalize.Username(fromUser),
		ToUser:   normalize.Username(toUser),
		Text:     text,
		SentAt:   sentAt,
	}
	l.msgs = append(l.msgs, m)
	return m, nil
}

func (l *memoryLog) GetMessageHistory(ctx context.Context, userA, userB string) ([]*data.Message, error) {
	a := normalize.Username(userA)
	b := normalize.Username(userB)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*data.Message
	for _, m := range l.msgs {
		if (m.FromUser == a && m.ToUser == b) || (m.FromUser == b && m.ToUser == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (l *memoryLog) GetRecentChats(ctx context.Context, username string, limit int64) ([]*data.Conversation, error) {
	username = normalize.Username(username)

	l.mu.Lock()
	defer l.mu.Unlock()

	last := map[string]*data.Message{}
	for _, m := range l.msgs {
		var partner string
		switch username {
		case m.FromUser:
			partner = m.ToUser
		case m.ToUser:
			partner = m.FromUser
		default:
			continue
		}
		if prev, ok := last[partner]; !ok || m.SentAt.After(prev.SentAt) {
			last[partner] = m
		}
	}

	var out []*data.Conversation
	for partner, m := range last {
		out = append(out, &data.Conversation{Username: partner, LastMessage: m.Text, LastMessageAt: m.SentAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memoryLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

func newTestHub(directory *fakeDirectory, log *memoryLog) (*ConnectionHub, *PresenceRegistry) {
	presence := NewPresenceRegistry()
	return NewConnectionHub(presence, directory, log), presence
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestAnnounce_RegistersAndBroadcastsRoster(t *testing.T) {
	hub, presence := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob", "carol"}}, &memoryLog{})

	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	hub.Attach(alice)
	hub.Attach(bob)

	if err := hub.Announce(context.Background(), alice); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	if _, ok := presence.Lookup("alice"); !ok {
		t.Fatal("alice not registered after Announce")
	}

	// every live connection received the roster, each one filtered to
	// exclude its own username — including accounts that are offline
	aliceRosters := alice.framesOfType(frameRosterUpdated)
	if len(aliceRosters) != 1 {
		t.Fatalf("expected 1 roster frame for alice, got %d", len(aliceRosters))
	}
	if contains(aliceRosters[0].Usernames, "alice") {
		t.Fatalf("alice's roster contains her own name: %v", aliceRosters[0].Usernames)
	}
	if !contains(aliceRosters[0].Usernames, "bob") || !contains(aliceRosters[0].Usernames, "carol") {
		t.Fatalf("alice's roster incomplete: %v", aliceRosters[0].Usernames)
	}

	bobRosters := bob.framesOfType(frameRosterUpdated)
	if len(bobRosters) != 1 {
		t.Fatalf("expected 1 roster frame for bob, got %d", len(bobRosters))
	}
	if contains(bobRosters[0].Usernames, "bob") {
		t.Fatalf("bob's roster contains his own name: %v", bobRosters[0].Usernames)
	}
}

func TestAnnounce_MissingIdentitySoftFails(t *testing.T) {
	hub, presence := newTestHub(&fakeDirectory{usernames: []string{"alice"}}, &memoryLog{})

	anon := newFakeConn("")
	hub.Attach(anon)

	if err := hub.Announce(context.Background(), anon); !errors.Is(err, errIdentityMissing) {
		t.Fatalf("expected errIdentityMissing, got %v", err)
	}
	if presence.Len() != 0 {
		t.Fatal("soft-failed Announce must not register anything")
	}
	if len(anon.framesOfType(frameRosterUpdated)) != 0 {
		t.Fatal("soft-failed Announce must not broadcast")
	}
}

func TestSend_PersistsAndDelivers(t *testing.T) {
	log := &memoryLog{}
	hub, _ := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob"}}, log)

	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	hub.Attach(alice)
	hub.Attach(bob)
	_ = hub.Announce(context.Background(), bob)

	if err := hub.Send(context.Background(), alice, "Bob", "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if log.count() != 1 {
		t.Fatalf("expected 1 persisted message, got %d", log.count())
	}

	received := bob.framesOfType(frameMessageReceived)
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery to bob, got %d", len(received))
	}
	if received[0].From != "alice" || received[0].Text != "hi" {
		t.Fatalf("unexpected delivery payload: %+v", received[0])
	}
}

func TestSend_OfflineRecipientPersistsOnly(t *testing.T) {
	log := &memoryLog{}
	hub, _ := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob"}}, log)

	alice := newFakeConn("alice")
	hub.Attach(alice)

	// bob never announced: routing miss is not an error
	if err := hub.Send(context.Background(), alice, "bob", "hi"); err != nil {
		t.Fatalf("Send to offline recipient failed: %v", err)
	}
	if log.count() != 1 {
		t.Fatalf("expected message persisted despite offline recipient, got %d", log.count())
	}
}

func TestSend_SlowRecipientDropsDeliveryNotMessage(t *testing.T) {
	log := &memoryLog{}
	hub, _ := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob"}}, log)

	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	hub.Attach(alice)
	hub.Attach(bob)
	_ = hub.Announce(context.Background(), bob)

	// bob's push queue is full: the frame is dropped, the sender never blocks
	bob.full = true

	if err := hub.Send(context.Background(), alice, "bob", "hi"); err != nil {
		t.Fatalf("Send to slow recipient failed: %v", err)
	}
	if log.count() != 1 {
		t.Fatalf("expected message persisted despite dropped delivery, got %d", log.count())
	}
	if len(bob.framesOfType(frameMessageReceived)) != 0 {
		t.Fatal("full connection must not accept the frame")
	}
}

func TestAnnounce_SlowConnectionStillSucceeds(t *testing.T) {
	hub, presence := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob"}}, &memoryLog{})

	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	bob.full = true
	hub.Attach(alice)
	hub.Attach(bob)

	// a roster push dropped on one connection must not fail the call or
	// starve the others
	if err := hub.Announce(context.Background(), alice); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	if _, ok := presence.Lookup("alice"); !ok {
		t.Fatal("alice not registered after Announce")
	}
	if len(alice.framesOfType(frameRosterUpdated)) != 1 {
		t.Fatal("expected roster delivered to responsive connection")
	}
	if len(bob.framesOfType(frameRosterUpdated)) != 0 {
		t.Fatal("full connection must not accept the roster frame")
	}
}

func TestSend_StoreFailureStillAttemptsDelivery(t *testing.T) {
	log := &memoryLog{failSave: true}
	hub, _ := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob"}}, log)

	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	hub.Attach(alice)
	hub.Attach(bob)
	_ = hub.Announce(context.Background(), bob)

	err := hub.Send(context.Background(), alice, "bob", "hi")
	if err == nil {
		t.Fatal("expected Send to fail when persistence fails")
	}

	// the two effects are independent: delivery was still attempted
	if len(bob.framesOfType(frameMessageReceived)) != 1 {
		t.Fatal("expected delivery attempt despite store failure")
	}
}

func TestSend_MissingIdentitySoftFails(t *testing.T) {
	log := &memoryLog{}
	hub, _ := newTestHub(&fakeDirectory{usernames: []string{"alice"}}, log)

	anon := newFakeConn("")
	hub.Attach(anon)

	if err := hub.Send(context.Background(), anon, "alice", "hi"); !errors.Is(err, errIdentityMissing) {
		t.Fatalf("expected errIdentityMissing, got %v", err)
	}
	if log.count() != 0 {
		t.Fatal("soft-failed Send must not persist")
	}
}

func TestHistory_MissingIdentityReturnsEmpty(t *testing.T) {
	hub, _ := newTestHub(&fakeDirectory{}, &memoryLog{})

	anon := newFakeConn("")
	msgs, err := hub.History(context.Background(), anon, "alice")
	if !errors.Is(err, errIdentityMissing) {
		t.Fatalf("expected errIdentityMissing, got %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(msgs))
	}
}

// Mirrors the full messaging scenario: announce, live delivery, durable
// history across a disconnect and reconnect.
func TestMessagingScenario(t *testing.T) {
	ctx := context.Background()
	log := &memoryLog{}
	hub, presence := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob"}}, log)

	alice := newFakeConn("alice")
	bob := newFakeConn("bob")
	hub.Attach(alice)
	hub.Attach(bob)
	_ = hub.Announce(ctx, alice)
	_ = hub.Announce(ctx, bob)

	// alice -> bob, live
	if err := hub.Send(ctx, alice, "bob", "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := bob.framesOfType(frameMessageReceived); len(got) != 1 || got[0].From != "alice" || got[0].Text != "hi" {
		t.Fatalf("bob did not receive the live message: %v", got)
	}

	history, err := hub.History(ctx, bob, "alice")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Text != "hi" {
		t.Fatalf("unexpected history: %v", history)
	}

	// bob disconnects; the send still succeeds but is not delivered live
	hub.Disconnect(bob)
	if _, ok := presence.Lookup("bob"); ok {
		t.Fatal("bob still registered after disconnect")
	}

	if err := hub.Send(ctx, alice, "bob", "bye"); err != nil {
		t.Fatalf("Send after disconnect failed: %v", err)
	}
	if got := bob.framesOfType(frameMessageReceived); len(got) != 1 {
		t.Fatalf("bob received a message while disconnected: %v", got)
	}

	// bob reconnects on a fresh connection and reads the full conversation
	bob2 := newFakeConn("bob")
	hub.Attach(bob2)
	_ = hub.Announce(ctx, bob2)

	history, err = hub.History(ctx, bob2, "alice")
	if err != nil {
		t.Fatalf("History after reconnect failed: %v", err)
	}
	if len(history) != 2 || history[0].Text != "hi" || history[1].Text != "bye" {
		t.Fatalf("unexpected history after reconnect: %v", history)
	}
}

func TestRecentChats(t *testing.T) {
	ctx := context.Background()
	log := &memoryLog{}
	hub, _ := newTestHub(&fakeDirectory{usernames: []string{"alice", "bob", "carol"}}, log)

	alice := newFakeConn("alice")
	hub.Attach(alice)

	_ = hub.Send(ctx, alice, "bob", "hi bob")
	time.Sleep(time.Millisecond)
	_ = hub.Send(ctx, alice, "carol", "hi carol")

	chats, err := hub.RecentChats(ctx, alice)
	if err != nil {
		t.Fatalf("RecentChats failed: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(chats))
	}
	if chats[0].Username != "carol" {
		t.Fatalf("expected most recent conversation first, got %s", chats[0].Username)
	}
}

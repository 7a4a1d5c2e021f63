package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *SQLiteStore, username string) {
	t.Helper()
	err := s.CreateUser(context.Background(), &User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustCreateUser(t, s, "alice")

	user, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user == nil || user.DisplayName != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := s.UpdateDisplayName(ctx, "alice", "Alice A."); err != nil {
		t.Fatalf("UpdateDisplayName failed: %v", err)
	}
	user, _ = s.GetUser(ctx, "alice")
	if user.DisplayName != "Alice A." {
		t.Fatalf("display name not updated: %+v", user)
	}

	if err := s.UpdateDisplayName(ctx, "nobody", "x"); err == nil {
		t.Fatalf("expected error updating unknown user")
	}

	missing, err := s.GetUser(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown user, got (%v, %v)", missing, err)
	}
}

func TestListUsersOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"carol", "alice", "bob"} {
		mustCreateUser(t, s, name)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(users) != len(want) {
		t.Fatalf("expected %d users, got %d", len(want), len(users))
	}
	for i, name := range want {
		if users[i].Username != name {
			t.Fatalf("expected users[%d]=%s, got %s", i, name, users[i].Username)
		}
	}
}

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateUser(t, s, "alice")
	mustCreateUser(t, s, "bob")

	var last int64
	for i := 0; i < 3; i++ {
		msg := &Message{
			MessageID: uuid.New().String(),
			Sender:    "alice",
			Recipient: "bob",
			Body:      "hi",
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if msg.Seq <= last {
			t.Fatalf("expected monotonically increasing seq, got %d after %d", msg.Seq, last)
		}
		last = msg.Seq
	}
}

func TestConversationBothDirections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateUser(t, s, "alice")
	mustCreateUser(t, s, "bob")
	mustCreateUser(t, s, "carol")

	bodies := []struct{ from, to, body string }{
		{"alice", "bob", "one"},
		{"bob", "alice", "two"},
		{"alice", "carol", "unrelated"},
		{"alice", "bob", "three"},
	}
	for _, m := range bodies {
		err := s.AppendMessage(ctx, &Message{
			MessageID: uuid.New().String(),
			Sender:    m.from,
			Recipient: m.to,
			Body:      m.body,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := s.Conversation(ctx, "alice", "bob", 0)
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, body := range want {
		if msgs[i].Body != body {
			t.Fatalf("expected msgs[%d]=%s, got %s", i, body, msgs[i].Body)
		}
	}

	// Limit keeps the most recent messages, still oldest first.
	limited, err := s.Conversation(ctx, "bob", "alice", 2)
	if err != nil {
		t.Fatalf("Conversation with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Body != "two" || limited[1].Body != "three" {
		t.Fatalf("unexpected limited conversation: %+v", limited)
	}
}

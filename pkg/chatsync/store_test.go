package chatsync_test

import (
	"testing"
	"time"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
)

var baseTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func serverMsg(id string, offset time.Duration, content string) chatsync.Message {
	return chatsync.Message{
		ID:             id,
		ConversationID: "conv-1",
		SenderID:       "member-2",
		Content:        content,
		CreatedAt:      baseTime.Add(offset),
	}
}

func assertOrder(t *testing.T, store *chatsync.MessageStore, wantIDs ...string) {
	t.Helper()
	got := store.Snapshot()
	if len(got) != len(wantIDs) {
		t.Fatalf("store has %d messages, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("message %d has id %s, want %s", i, got[i].ID, id)
		}
		if i > 0 && got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v before %v", i, got[i].CreatedAt, got[i-1].CreatedAt)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	msgs := []chatsync.Message{
		serverMsg("s1", 0, "a"),
		serverMsg("s2", time.Second, "b"),
		serverMsg("s3", 2*time.Second, "c"),
	}

	// Same message set, different batch splits and replays, identical result.
	batchings := [][][]chatsync.Message{
		{msgs},
		{msgs[:1], msgs[1:]},
		{msgs[:2], msgs, msgs[1:], msgs},
		{msgs[2:], msgs[:2], msgs},
	}
	for i, batches := range batchings {
		store := chatsync.NewMessageStore("conv-1")
		total := 0
		for _, b := range batches {
			total += store.Merge(b)
		}
		if total != 3 {
			t.Fatalf("batching %d: appended %d total, want 3", i, total)
		}
		assertOrder(t, store, "s1", "s2", "s3")
		if !store.Cursor().Equal(baseTime.Add(2 * time.Second)) {
			t.Fatalf("batching %d: cursor %v, want %v", i, store.Cursor(), baseTime.Add(2*time.Second))
		}
	}
}

func TestMergeDuplicateBatchIsNoop(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	batch := []chatsync.Message{serverMsg("s3", 10*time.Second, "Hey!")}
	if n := store.Merge(batch); n != 1 {
		t.Fatalf("first merge appended %d, want 1", n)
	}
	if n := store.Merge(batch); n != 0 {
		t.Fatalf("replayed merge appended %d, want 0", n)
	}
	assertOrder(t, store, "s3")
}

func TestCursorMonotonic(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	store.Merge([]chatsync.Message{serverMsg("s2", 5*time.Second, "b")})
	high := store.Cursor()

	// An older message merged late must not rewind the cursor.
	store.Merge([]chatsync.Message{serverMsg("s1", time.Second, "a")})
	if store.Cursor().Before(high) {
		t.Fatalf("cursor rewound to %v from %v", store.Cursor(), high)
	}
	assertOrder(t, store, "s1", "s2")
}

func TestCursorAdvanceOnlyForward(t *testing.T) {
	var c chatsync.Cursor
	if !c.Get().IsZero() {
		t.Fatal("new cursor is not zero")
	}
	if !c.Advance(baseTime) {
		t.Fatal("first advance rejected")
	}
	if c.Advance(baseTime.Add(-time.Second)) {
		t.Fatal("cursor advanced backwards")
	}
	if c.Advance(baseTime) {
		t.Fatal("cursor advanced to equal value")
	}
	if !c.Get().Equal(baseTime) {
		t.Fatalf("cursor %v, want %v", c.Get(), baseTime)
	}
}

func TestInsertOptimisticPending(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	localID := store.InsertOptimistic(chatsync.Message{SenderID: "me", Content: "Hello"})
	if !chatsync.IsLocalID(localID) {
		t.Fatalf("local id %q missing local prefix", localID)
	}
	snap := store.Snapshot()
	if len(snap) != 1 || !snap[0].Pending() {
		t.Fatalf("expected one pending message, got %+v", snap)
	}
	// Optimistic inserts must not move the incremental-fetch watermark.
	if !store.Cursor().IsZero() {
		t.Fatalf("optimistic insert advanced cursor to %v", store.Cursor())
	}
}

func TestReconcileReplacesOptimistic(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	store.Merge([]chatsync.Message{serverMsg("s1", 0, "Hi")})
	localID := store.InsertOptimistic(chatsync.Message{SenderID: "me", Content: "Hello"})

	server := serverMsg("s2", 5*time.Second, "Hello")
	store.Reconcile(localID, server)

	assertOrder(t, store, "s1", "s2")
	for _, m := range store.Snapshot() {
		if m.ID == localID {
			t.Fatal("local id still present after reconcile")
		}
	}
	if !store.Cursor().Equal(server.CreatedAt) {
		t.Fatalf("cursor %v, want %v", store.Cursor(), server.CreatedAt)
	}
}

func TestDiscardOptimistic(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	localID := store.InsertOptimistic(chatsync.Message{SenderID: "me", Content: "Hello"})
	if !store.DiscardOptimistic(localID) {
		t.Fatal("discard reported entry missing")
	}
	if store.Len() != 0 {
		t.Fatalf("store still holds %d messages", store.Len())
	}
	// Second discard and late reconcile are tolerated silently.
	if store.DiscardOptimistic(localID) {
		t.Fatal("second discard reported entry present")
	}
	store.Reconcile(localID, serverMsg("s9", time.Second, "Hello"))
	if store.Len() != 0 {
		t.Fatal("late reconcile resurrected a discarded message")
	}
}

func TestReconcileAfterPollAlreadyDelivered(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	localID := store.InsertOptimistic(chatsync.Message{SenderID: "me", Content: "Hello"})

	// A poll result independently delivers the now-server-side copy before
	// the send's own reconciliation callback.
	server := serverMsg("s2", 5*time.Second, "Hello")
	store.Merge([]chatsync.Message{server})
	store.Reconcile(localID, server)

	assertOrder(t, store, "s2")
}

func TestMarkReadBefore(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	store.Merge([]chatsync.Message{
		serverMsg("s1", 0, "a"),
		serverMsg("s2", time.Second, "b"),
		serverMsg("s3", time.Hour, "later"),
	})
	marked := store.MarkReadBefore(baseTime.Add(time.Minute), baseTime.Add(time.Minute))
	if marked != 2 {
		t.Fatalf("marked %d, want 2", marked)
	}
	snap := store.Snapshot()
	if !snap[0].Read() || !snap[1].Read() || snap[2].Read() {
		t.Fatalf("unexpected read flags: %v %v %v", snap[0].Read(), snap[1].Read(), snap[2].Read())
	}
	if n := store.Unread("me"); n != 1 {
		t.Fatalf("unread %d, want 1", n)
	}
	assertOrder(t, store, "s1", "s2", "s3")
}

func TestClosedStoreRejectsMutation(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	store.Merge([]chatsync.Message{serverMsg("s1", 0, "a")})
	store.Close()

	if n := store.Merge([]chatsync.Message{serverMsg("s2", time.Second, "b")}); n != 0 {
		t.Fatalf("merge into closed store appended %d", n)
	}
	if id := store.InsertOptimistic(chatsync.Message{Content: "x"}); id != "" {
		t.Fatalf("optimistic insert into closed store returned %q", id)
	}
	store.Reconcile("local:gone", serverMsg("s3", time.Second, "c"))
	if store.Len() != 1 {
		t.Fatalf("closed store mutated, len %d", store.Len())
	}
}

// TestReferenceScenario walks the literal open-send-poll sequence from the
// product behavior reference.
func TestReferenceScenario(t *testing.T) {
	store := chatsync.NewMessageStore("conv-1")
	store.Merge([]chatsync.Message{serverMsg("s1", 0, "Hi")})
	if !store.Cursor().Equal(baseTime) {
		t.Fatalf("cursor %v, want %v", store.Cursor(), baseTime)
	}

	localID := store.InsertOptimistic(chatsync.Message{SenderID: "me", Content: "Hello"})
	assertOrder(t, store, "s1", localID)

	s2 := serverMsg("s2", 5*time.Second, "Hello")
	store.Reconcile(localID, s2)
	assertOrder(t, store, "s1", "s2")
	if !store.Cursor().Equal(s2.CreatedAt) {
		t.Fatalf("cursor %v, want %v", store.Cursor(), s2.CreatedAt)
	}

	// Empty poll: nothing changes.
	if n := store.Merge(nil); n != 0 {
		t.Fatalf("empty merge appended %d", n)
	}

	s3 := serverMsg("s3", 10*time.Second, "Hey!")
	store.Merge([]chatsync.Message{s3})
	if !store.Cursor().Equal(s3.CreatedAt) {
		t.Fatalf("cursor %v, want %v", store.Cursor(), s3.CreatedAt)
	}

	// Duplicate network response replayed.
	store.Merge([]chatsync.Message{s3})
	assertOrder(t, store, "s1", "s2", "s3")
}

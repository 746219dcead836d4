package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/apiclient"
	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/stubserver"
)

func newBackend(t *testing.T) (*stubserver.Server, *httptest.Server) {
	t.Helper()
	stub := stubserver.New(zerolog.Nop())
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return stub, srv
}

func TestPostAndFetchConversation(t *testing.T) {
	stub, srv := newBackend(t)
	client := apiclient.NewClient(srv.URL, "member-1", zerolog.Nop())
	ctx := context.Background()

	stub.Seed(chatsync.KindGroup, "youth-group", "member-2", "Welcome!")
	posted, err := client.PostMessage(ctx, chatsync.KindGroup, "youth-group", chatsync.OutgoingMessage{Content: "Thanks!"})
	if err != nil {
		t.Fatalf("PostMessage err: %v", err)
	}
	if posted.ID == "" || chatsync.IsLocalID(posted.ID) {
		t.Fatalf("posted message has bad id %q", posted.ID)
	}
	if posted.SenderID != "member-1" {
		t.Fatalf("sender %q, want member-1", posted.SenderID)
	}

	conv, err := client.FetchConversation(ctx, chatsync.KindGroup, "youth-group")
	if err != nil {
		t.Fatalf("FetchConversation err: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("conversation has %d messages, want 2", len(conv.Messages))
	}
	if !conv.Messages[1].CreatedAt.After(conv.Messages[0].CreatedAt) {
		t.Fatal("server timestamps not strictly increasing")
	}
}

func TestFetchSinceStrictlyNewer(t *testing.T) {
	stub, srv := newBackend(t)
	client := apiclient.NewClient(srv.URL, "member-1", zerolog.Nop())
	ctx := context.Background()

	first := stub.Seed(chatsync.KindSupport, "conv-1", "pastor", "How can we help?")
	second := stub.Seed(chatsync.KindSupport, "conv-1", "pastor", "Still there?")

	newer, err := client.FetchSince(ctx, chatsync.KindSupport, "conv-1", first.CreatedAt)
	if err != nil {
		t.Fatalf("FetchSince err: %v", err)
	}
	if len(newer) != 1 || newer[0].ID != second.ID {
		t.Fatalf("FetchSince returned %+v, want only %s", newer, second.ID)
	}

	// Nothing strictly newer than the latest message.
	empty, err := client.FetchSince(ctx, chatsync.KindSupport, "conv-1", second.CreatedAt)
	if err != nil {
		t.Fatalf("FetchSince err: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("FetchSince returned %d messages, want 0", len(empty))
	}
}

func TestUploadFile(t *testing.T) {
	_, srv := newBackend(t)
	client := apiclient.NewClient(srv.URL, "member-1", zerolog.Nop())

	uploaded, err := client.UploadFile(context.Background(), "notes.txt", "text/plain", []byte("service notes"))
	if err != nil {
		t.Fatalf("UploadFile err: %v", err)
	}
	if uploaded.URL == "" || uploaded.Name != "notes.txt" {
		t.Fatalf("unexpected upload result %+v", uploaded)
	}

	resp, err := http.Get(srv.URL + uploaded.URL)
	if err != nil {
		t.Fatalf("fetch uploaded file: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("uploaded file fetch status %d", resp.StatusCode)
	}
}

func TestMarkRead(t *testing.T) {
	stub, srv := newBackend(t)
	reader := apiclient.NewClient(srv.URL, "member-1", zerolog.Nop())
	ctx := context.Background()

	stub.Seed(chatsync.KindDirect, "dm-1", "member-2", "Hello")
	if err := reader.MarkRead(ctx, chatsync.KindDirect, "dm-1"); err != nil {
		t.Fatalf("MarkRead err: %v", err)
	}

	conv, err := reader.FetchConversation(ctx, chatsync.KindDirect, "dm-1")
	if err != nil {
		t.Fatalf("FetchConversation err: %v", err)
	}
	if conv.Messages[0].ReadAt == nil {
		t.Fatal("message not marked read server-side")
	}
}

func TestServerErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := apiclient.NewClient(srv.URL, "member-1", zerolog.Nop())
	_, err := client.FetchSince(context.Background(), chatsync.KindDirect, "dm-1", time.Now())
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.IsServerError() {
		t.Fatalf("503 not classified as server error: %+v", apiErr)
	}
}

func TestEndToEndSessionAgainstStub(t *testing.T) {
	stub, srv := newBackend(t)
	client := apiclient.NewClient(srv.URL, "member-1", zerolog.Nop())

	stub.Seed(chatsync.KindGroup, "choir", "member-2", "Rehearsal moved to 7pm")
	session, err := chatsync.OpenSession(context.Background(), client, chatsync.SessionConfig{
		Kind:           chatsync.KindGroup,
		ConversationID: "choir",
		Self:           chatsync.UserIdentity{ID: "member-1", DisplayName: "Grace"},
		PollInterval:   chatsync.MinPollInterval,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenSession err: %v", err)
	}
	defer session.Close()

	if _, err := session.Send(context.Background(), "Noted, thanks!"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	// Another participant writes; polling must pick it up.
	stub.Seed(chatsync.KindGroup, "choir", "member-2", "Bring sheet music")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(session.Messages()) == 3 {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	msgs := session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("session has %d messages, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatal("messages out of order after poll merge")
		}
	}
	for _, m := range msgs {
		if m.Pending() {
			t.Fatalf("message %s still pending after reconciliation", m.ID)
		}
	}
}

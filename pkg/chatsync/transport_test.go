package chatsync_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
)

// fakeTransport is a scriptable TransportClient. Any unset hook returns an
// empty success.
type fakeTransport struct {
	mu sync.Mutex

	fetchConversation func(kind chatsync.ConversationKind, cid string) (*chatsync.Conversation, error)
	fetchSince        func(kind chatsync.ConversationKind, cid string, since time.Time) ([]chatsync.Message, error)
	postMessage       func(kind chatsync.ConversationKind, cid string, out chatsync.OutgoingMessage) (*chatsync.Message, error)
	uploadFile        func(name, contentType string, data []byte) (*chatsync.UploadedFile, error)
	markRead          func(kind chatsync.ConversationKind, cid string) error

	fetchSinceCalls int
	markReadCalls   int
}

func (f *fakeTransport) FetchConversation(_ context.Context, kind chatsync.ConversationKind, cid string) (*chatsync.Conversation, error) {
	if f.fetchConversation != nil {
		return f.fetchConversation(kind, cid)
	}
	return &chatsync.Conversation{ID: cid, Kind: kind}, nil
}

func (f *fakeTransport) FetchSince(_ context.Context, kind chatsync.ConversationKind, cid string, since time.Time) ([]chatsync.Message, error) {
	f.mu.Lock()
	f.fetchSinceCalls++
	f.mu.Unlock()
	if f.fetchSince != nil {
		return f.fetchSince(kind, cid, since)
	}
	return nil, nil
}

func (f *fakeTransport) PostMessage(_ context.Context, kind chatsync.ConversationKind, cid string, out chatsync.OutgoingMessage) (*chatsync.Message, error) {
	if f.postMessage != nil {
		return f.postMessage(kind, cid, out)
	}
	return nil, errors.New("postMessage not scripted")
}

func (f *fakeTransport) UploadFile(_ context.Context, name, contentType string, data []byte) (*chatsync.UploadedFile, error) {
	if f.uploadFile != nil {
		return f.uploadFile(name, contentType, data)
	}
	return &chatsync.UploadedFile{URL: "https://files.example/" + name, Type: contentType, Name: name}, nil
}

func (f *fakeTransport) MarkRead(_ context.Context, kind chatsync.ConversationKind, cid string) error {
	f.mu.Lock()
	f.markReadCalls++
	f.mu.Unlock()
	if f.markRead != nil {
		return f.markRead(kind, cid)
	}
	return nil
}

func (f *fakeTransport) sinceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchSinceCalls
}

var _ chatsync.TransportClient = (*fakeTransport)(nil)

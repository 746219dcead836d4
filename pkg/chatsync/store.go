// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chatsync

import (
	"sort"
	"sync"
	"time"
)

// MessageStore holds the ordered, deduplicated message list for one open
// conversation. It is the single source of truth for rendering and is only
// written by the poll loop and the send pipeline. Merge and Reconcile are
// commutative with respect to arrival order: whichever of a poll result or a
// send reconciliation lands first establishes presence by server id, and the
// other collapses into a no-op.
//
// All mutations become no-ops after Close so that late network callbacks
// never write into a torn-down screen.
type MessageStore struct {
	mu             sync.Mutex
	conversationID string
	messages       []Message
	serverIDs      map[string]bool
	cursor         Cursor
	closed         bool
}

// NewMessageStore creates an empty store for the given conversation.
func NewMessageStore(conversationID string) *MessageStore {
	return &MessageStore{
		conversationID: conversationID,
		serverIDs:      make(map[string]bool),
	}
}

// insertSorted places msg at the position consistent with ascending
// createdAt. Polled batches arrive in order, so the common case is a tail
// append; the binary search only matters for reconciled sends whose server
// timestamp lands before interim polled messages.
func (s *MessageStore) insertSorted(msg Message) {
	n := len(s.messages)
	if n == 0 || !s.messages[n-1].CreatedAt.After(msg.CreatedAt) {
		s.messages = append(s.messages, msg)
		return
	}
	idx := sort.Search(n, func(i int) bool {
		return s.messages[i].CreatedAt.After(msg.CreatedAt)
	})
	s.messages = append(s.messages, Message{})
	copy(s.messages[idx+1:], s.messages[idx:])
	s.messages[idx] = msg
}

// Merge folds a batch of server messages into the store, skipping any whose
// server id is already present. Returns how many were actually new. The
// cursor advances to the newest appended createdAt, never backwards.
// Replaying the same batch any number of times is the expected idempotent
// case, not an error.
func (s *MessageStore) Merge(incoming []Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	appended := 0
	var newest time.Time
	for _, msg := range incoming {
		if msg.ID == "" || IsLocalID(msg.ID) || s.serverIDs[msg.ID] {
			if msg.ID != "" && s.serverIDs[msg.ID] {
				duplicateMerges.Inc()
			}
			continue
		}
		s.serverIDs[msg.ID] = true
		s.insertSorted(msg)
		appended++
		if msg.CreatedAt.After(newest) {
			newest = msg.CreatedAt
		}
	}
	if appended > 0 {
		s.cursor.Advance(newest)
		mergedMessages.Add(float64(appended))
	}
	return appended
}

// InsertOptimistic appends a pending placeholder for an outgoing message and
// returns its local id. The client clock is stamped as a provisional
// createdAt, overwritten on reconciliation.
func (s *MessageStore) InsertOptimistic(msg Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ""
	}
	msg.ID = NewLocalID()
	msg.ConversationID = s.conversationID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	// The current time is >= every existing createdAt in well-behaved
	// operation, so this is a tail append.
	s.messages = append(s.messages, msg)
	return msg.ID
}

// Reconcile replaces the optimistic entry identified by localID with the
// canonical server message. If a poll already delivered the server copy, the
// optimistic entry is simply dropped. If the optimistic entry is gone
// (discarded, or the screen was torn down and rebuilt), the call is a
// silent no-op.
func (s *MessageStore) Reconcile(localID string, server Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || server.ID == "" {
		return
	}
	idx := s.indexOf(localID)
	if idx < 0 {
		return
	}
	s.removeAt(idx)
	if !s.serverIDs[server.ID] {
		s.serverIDs[server.ID] = true
		s.insertSorted(server)
	}
	s.cursor.Advance(server.CreatedAt)
}

// DiscardOptimistic removes a pending placeholder after an irrecoverable
// send failure. Reports whether the entry was present.
func (s *MessageStore) DiscardOptimistic(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	idx := s.indexOf(localID)
	if idx < 0 {
		return false
	}
	s.removeAt(idx)
	return true
}

// MarkReadBefore stamps readAt on every unread message at or before cutoff.
// Ordering is untouched. Returns how many messages were newly marked.
func (s *MessageStore) MarkReadBefore(cutoff, readAt time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	marked := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReadAt == nil && !m.CreatedAt.After(cutoff) {
			at := readAt
			m.ReadAt = &at
			marked++
		}
	}
	return marked
}

// Unread counts messages from other senders that have no readAt yet.
func (s *MessageStore) Unread(selfID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	unread := 0
	for i := range s.messages {
		if s.messages[i].SenderID != selfID && s.messages[i].ReadAt == nil {
			unread++
		}
	}
	return unread
}

// Snapshot returns a copy of the message list for rendering.
func (s *MessageStore) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages currently held.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Cursor returns the current incremental-fetch watermark. Zero until the
// first message (sent or received) establishes a baseline.
func (s *MessageStore) Cursor() time.Time {
	return s.cursor.Get()
}

// ConversationID returns the owning conversation id.
func (s *MessageStore) ConversationID() string {
	return s.conversationID
}

// Close makes every subsequent mutation a no-op. Late poll results and send
// reconciliations resolving after Close are safely discarded.
func (s *MessageStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the store has been torn down.
func (s *MessageStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MessageStore) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MessageStore) removeAt(idx int) {
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
}

// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chatsync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ReadTracker marks a conversation read server-side and mirrors the read
// flags locally. Failures only affect unread badges, never message content,
// so they are logged and swallowed.
type ReadTracker struct {
	store     *MessageStore
	transport TransportClient
	kind      ConversationKind
	log       zerolog.Logger
}

// NewReadTracker creates a tracker sharing the conversation's store.
func NewReadTracker(store *MessageStore, transport TransportClient, kind ConversationKind, log zerolog.Logger) *ReadTracker {
	return &ReadTracker{
		store:     store,
		transport: transport,
		kind:      kind,
		log:       log.With().Str("component", "read_tracker").Str("conversation_id", store.ConversationID()).Logger(),
	}
}

// MarkConversationRead is fire-and-forget: the server call runs in the
// background and local read flags are flipped immediately. The returned
// channel closes once the server call has resolved (used by tests and by
// session teardown to avoid leaking the goroutine past interest).
func (r *ReadTracker) MarkConversationRead(ctx context.Context) <-chan struct{} {
	now := time.Now()
	r.store.MarkReadBefore(now, now)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.transport.MarkRead(ctx, r.kind, r.store.ConversationID()); err != nil {
			readMarkFailures.Inc()
			r.log.Warn().Err(err).Msg("Failed to mark conversation read")
		}
	}()
	return done
}

// Unread returns how many messages from other senders are still unread.
func (r *ReadTracker) Unread(selfID string) int {
	return r.store.Unread(selfID)
}

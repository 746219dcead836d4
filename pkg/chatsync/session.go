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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidKind is returned when a session is opened with an unknown chat
// surface.
var ErrInvalidKind = errors.New("invalid conversation kind")

// SessionConfig describes one conversation to open.
type SessionConfig struct {
	Kind           ConversationKind
	ConversationID string
	Self           UserIdentity
	PollInterval   time.Duration
}

// Session owns the sync state for one open chat screen: the message store,
// the poll loop, the send pipeline and the read tracker. Multiple sessions
// may be open concurrently; they share nothing but the transport.
//
// Close tears everything down synchronously. Any network response landing
// after Close resolves into a no-op against the closed store.
type Session struct {
	cfg       SessionConfig
	store     *MessageStore
	poll      *PollLoop
	pipeline  *SendPipeline
	read      *ReadTracker
	transport TransportClient
	log       zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// OpenSession fetches the full conversation, seeds the store and cursor,
// starts incremental polling and marks the conversation read. The passed
// context only bounds the initial fetch; the session's background work runs
// on its own context until Close.
func OpenSession(ctx context.Context, transport TransportClient, cfg SessionConfig, log zerolog.Logger) (*Session, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, cfg.Kind)
	}
	if cfg.ConversationID == "" {
		return nil, errors.New("conversation id is required")
	}

	log = log.With().Str("component", "chat_session").Str("kind", string(cfg.Kind)).Str("conversation_id", cfg.ConversationID).Logger()
	conv, err := transport.FetchConversation(ctx, cfg.Kind, cfg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	store := NewMessageStore(cfg.ConversationID)
	seeded := store.Merge(conv.Messages)
	log.Debug().Int("messages", seeded).Time("cursor", store.Cursor()).Msg("Conversation loaded")

	s := &Session{
		cfg:       cfg,
		store:     store,
		transport: transport,
		log:       log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.pipeline = NewSendPipeline(store, transport, cfg.Kind, cfg.Self, log)
	s.read = NewReadTracker(store, transport, cfg.Kind, log)
	s.poll = NewPollLoop(store, transport, cfg.Kind, cfg.PollInterval, log)
	s.poll.OnMerge(func(int) {
		s.read.MarkConversationRead(s.ctx)
	})
	s.poll.Start(s.ctx)
	s.read.MarkConversationRead(s.ctx)
	return s, nil
}

// Send submits a text-only message.
func (s *Session) Send(ctx context.Context, content string) (*SendResult, error) {
	return s.SendWithAttachment(ctx, content, nil)
}

// SendWithAttachment submits a message carrying an already-uploaded
// attachment. Uploading happens before this call (see the upload package);
// an upload failure therefore never leaves a dangling optimistic message.
func (s *Session) SendWithAttachment(ctx context.Context, content string, att *Attachment) (*SendResult, error) {
	res, err := s.pipeline.Send(ctx, content, att)
	if err == nil {
		s.read.MarkConversationRead(s.ctx)
	}
	return res, err
}

// Messages returns a rendering snapshot, ascending by createdAt.
func (s *Session) Messages() []Message {
	return s.store.Snapshot()
}

// Unread counts unread messages from other participants.
func (s *Session) Unread() int {
	return s.store.Unread(s.cfg.Self.ID)
}

// Cursor exposes the incremental-fetch watermark.
func (s *Session) Cursor() time.Time {
	return s.store.Cursor()
}

// SetPollInterval retunes the live poll loop (config hot reload).
func (s *Session) SetPollInterval(interval time.Duration) {
	s.poll.SetInterval(interval)
}

// Kind returns the session's chat surface.
func (s *Session) Kind() ConversationKind {
	return s.cfg.Kind
}

// Close stops polling, cancels background work and seals the store.
// Idempotent and synchronous: after Close returns no further ticks fire and
// no late response mutates the store.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.poll.Stop()
		s.cancel()
		s.store.Close()
		s.log.Debug().Msg("Chat session closed")
	})
}

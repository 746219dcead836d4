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
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyMessage is returned for a send with no text and no attachment.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrDuplicateSend is returned while an identical logical send is still
	// outstanding. The caller may retry once the first attempt resolves.
	ErrDuplicateSend = errors.New("identical send already in flight")
	// ErrStoreClosed is returned when the owning conversation screen has
	// been torn down.
	ErrStoreClosed = errors.New("message store is closed")
)

// sendState tracks one send attempt through its lifecycle.
type sendState int

const (
	sendStateComposing sendState = iota
	sendStateInserted
	sendStateSubmitting
	sendStateReconciled
	sendStateFailed
)

func (s sendState) String() string {
	switch s {
	case sendStateComposing:
		return "composing"
	case sendStateInserted:
		return "optimistically_inserted"
	case sendStateSubmitting:
		return "submitting"
	case sendStateReconciled:
		return "reconciled"
	case sendStateFailed:
		return "failed"
	}
	return "unknown"
}

// sendAttempt is the per-send state machine. Transitions are linear:
// composing → inserted → submitting → reconciled | failed.
type sendAttempt struct {
	state   sendState
	localID string
	log     zerolog.Logger
}

func (a *sendAttempt) advance(next sendState) {
	a.log.Debug().Stringer("from", a.state).Stringer("to", next).Msg("Send state transition")
	a.state = next
}

// SendResult carries the outcome of a send. On failure Message is nil and
// the original input is preserved so the caller can restore the compose box
// without the user retyping.
type SendResult struct {
	Message    *Message
	Content    string
	Attachment *Attachment
}

// SendPipeline turns user intent into a durable server message while
// keeping the local view responsive: the optimistic placeholder is inserted
// before any network round trip, then reconciled with the server's
// canonical copy or discarded on failure.
type SendPipeline struct {
	store     *MessageStore
	transport TransportClient
	kind      ConversationKind
	sender    UserIdentity
	log       zerolog.Logger

	inflightMu sync.Mutex
	inflight   map[string]bool
}

// UserIdentity is the local user stamped onto optimistic messages.
type UserIdentity struct {
	ID          string
	DisplayName string
}

// NewSendPipeline creates a pipeline writing into store.
func NewSendPipeline(store *MessageStore, transport TransportClient, kind ConversationKind, sender UserIdentity, log zerolog.Logger) *SendPipeline {
	return &SendPipeline{
		store:     store,
		transport: transport,
		kind:      kind,
		sender:    sender,
		log:       log.With().Str("component", "send_pipeline").Str("conversation_id", store.ConversationID()).Logger(),
		inflight:  make(map[string]bool),
	}
}

// inflightKey identifies a logical send. At most one pending optimistic
// message may exist per (content, attachment) tuple at a time.
func inflightKey(content string, att *Attachment) string {
	if att == nil {
		return content
	}
	return content + "\x00" + att.URL
}

// Send submits content with an optional already-uploaded attachment.
// On success the returned result carries the canonical server message and
// the store's cursor has advanced. On failure the optimistic placeholder is
// removed, the error is retryable, and the result still carries the input.
func (p *SendPipeline) Send(ctx context.Context, content string, att *Attachment) (*SendResult, error) {
	res := &SendResult{Content: content, Attachment: att}
	if strings.TrimSpace(content) == "" && att == nil {
		return res, ErrEmptyMessage
	}
	if p.store.Closed() {
		return res, ErrStoreClosed
	}

	key := inflightKey(content, att)
	p.inflightMu.Lock()
	if p.inflight[key] {
		p.inflightMu.Unlock()
		return res, ErrDuplicateSend
	}
	p.inflight[key] = true
	p.inflightMu.Unlock()
	defer func() {
		p.inflightMu.Lock()
		delete(p.inflight, key)
		p.inflightMu.Unlock()
	}()

	sendsStarted.Inc()
	attempt := &sendAttempt{state: sendStateComposing, log: p.log}

	localID := p.store.InsertOptimistic(Message{
		SenderID:          p.sender.ID,
		SenderDisplayName: p.sender.DisplayName,
		Content:           content,
		Attachment:        att,
	})
	if localID == "" {
		// Store closed between the guard above and the insert.
		return res, ErrStoreClosed
	}
	attempt.localID = localID
	attempt.advance(sendStateInserted)

	out := OutgoingMessage{Content: content}
	if att != nil {
		out.AttachmentURL = att.URL
		out.AttachmentType = att.Kind
		out.AttachmentName = att.DisplayName
	}
	attempt.advance(sendStateSubmitting)
	server, err := p.transport.PostMessage(ctx, p.kind, p.store.ConversationID(), out)
	if err != nil {
		attempt.advance(sendStateFailed)
		sendFailures.Inc()
		p.store.DiscardOptimistic(localID)
		if att != nil {
			// The uploaded file stays orphaned server-side. Accepted as a
			// non-fatal leak, not retried.
			orphanedUploads.Inc()
			p.log.Warn().Str("attachment_url", att.URL).Msg("Send failed after upload, attachment orphaned")
		}
		return res, fmt.Errorf("failed to post message: %w", err)
	}

	p.store.Reconcile(localID, *server)
	attempt.advance(sendStateReconciled)
	p.log.Debug().Str("message_id", server.ID).Time("created_at", server.CreatedAt).Msg("Send reconciled")
	res.Message = server
	return res, nil
}

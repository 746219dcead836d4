// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chatsync

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationKind selects the chat surface. All three are structurally
// identical for sync purposes; the kind only picks the REST path prefix.
type ConversationKind string

const (
	KindSupport ConversationKind = "support"
	KindDirect  ConversationKind = "direct"
	KindGroup   ConversationKind = "group"
)

func (k ConversationKind) Valid() bool {
	switch k {
	case KindSupport, KindDirect, KindGroup:
		return true
	}
	return false
}

// AttachmentKind distinguishes image attachments (rendered inline) from
// generic documents (rendered as a download link).
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is the durable server-side reference to an uploaded file.
// Width/Height are only set for images, and only when the uploader could
// decode the file locally.
type Attachment struct {
	URL         string         `json:"url"`
	Kind        AttachmentKind `json:"kind"`
	DisplayName string         `json:"displayName"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
}

// localIDPrefix marks client-generated ids for optimistic messages. The
// backend never issues ids with this prefix, so a prefix check is enough to
// derive pending state.
const localIDPrefix = "local:"

// NewLocalID returns a fresh client-side id for an optimistic message.
func NewLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was generated by NewLocalID rather than
// assigned by the server.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// Message is one chat message as held by the client. CreatedAt is the
// authoritative ordering key; for an optimistic message it holds the client
// clock as a provisional value until reconciliation overwrites it.
type Message struct {
	ID                string      `json:"id"`
	ConversationID    string      `json:"conversationId"`
	SenderID          string      `json:"senderId"`
	SenderDisplayName string      `json:"senderDisplayName,omitempty"`
	Content           string      `json:"content"`
	Attachment        *Attachment `json:"attachment,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	ReadAt            *time.Time  `json:"readAt,omitempty"`
}

// Pending reports whether the message is an optimistic placeholder that has
// not been reconciled with a server-assigned message yet.
func (m *Message) Pending() bool {
	return IsLocalID(m.ID)
}

// Read reports whether the message has been marked read.
func (m *Message) Read() bool {
	return m.ReadAt != nil
}

// Conversation is the server-held thread the sync core mirrors. Participants
// and GroupRef are opaque to the core; they are carried for callers.
type Conversation struct {
	ID           string           `json:"id"`
	Kind         ConversationKind `json:"kind"`
	Participants []string         `json:"participants,omitempty"`
	GroupRef     string           `json:"groupRef,omitempty"`
	Messages     []Message        `json:"messages"`
}

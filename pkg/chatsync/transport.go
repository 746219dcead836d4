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
)

// OutgoingMessage is the payload for posting a new message. Attachment
// fields are only set when the send carries an uploaded file.
type OutgoingMessage struct {
	Content        string
	AttachmentURL  string
	AttachmentType AttachmentKind
	AttachmentName string
}

// UploadedFile is the durable result of a raw file upload.
type UploadedFile struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// TransportClient is the narrow slice of the backend REST API the sync core
// consumes. Implementations own authentication and network-level timeouts;
// the core treats every returned error as transient and recoverable.
type TransportClient interface {
	// FetchConversation returns the full conversation, messages ascending
	// by createdAt. Used once when a chat screen opens.
	FetchConversation(ctx context.Context, kind ConversationKind, conversationID string) (*Conversation, error)
	// FetchSince returns messages strictly newer than since, ascending.
	FetchSince(ctx context.Context, kind ConversationKind, conversationID string, since time.Time) ([]Message, error)
	// PostMessage creates a message and returns the canonical server copy.
	PostMessage(ctx context.Context, kind ConversationKind, conversationID string, out OutgoingMessage) (*Message, error)
	// UploadFile uploads raw file content and returns its durable reference.
	UploadFile(ctx context.Context, name, contentType string, data []byte) (*UploadedFile, error)
	// MarkRead marks the conversation read server-side.
	MarkRead(ctx context.Context, kind ConversationKind, conversationID string) error
}

// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package apiclient implements chatsync.TransportClient against the church
// app's REST backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, body)
}

// IsServerError reports whether the failure is on the server side and
// therefore worth retrying on a later tick.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// Client talks to the backend REST API. The auth token is sent as a Bearer
// header; token refresh is the caller's concern.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

var _ chatsync.TransportClient = (*Client)(nil)

// NewClient creates a client for the given base URL (scheme + host, no
// trailing slash required).
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "api_client").Logger(),
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests, custom timeouts).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) endpoint(kind chatsync.ConversationKind, parts ...string) string {
	b := strings.Builder{}
	b.WriteString(c.baseURL)
	b.WriteByte('/')
	b.WriteString(string(kind))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to prepare request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.log.Trace().Str("method", method).Str("endpoint", endpoint).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchConversation loads the full conversation, used once on screen open.
func (c *Client) FetchConversation(ctx context.Context, kind chatsync.ConversationKind, conversationID string) (*chatsync.Conversation, error) {
	var conv chatsync.Conversation
	if err := c.do(ctx, http.MethodGet, c.endpoint(kind, conversationID), nil, "", &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// FetchSince returns messages strictly newer than since, ascending.
func (c *Client) FetchSince(ctx context.Context, kind chatsync.ConversationKind, conversationID string, since time.Time) ([]chatsync.Message, error) {
	endpoint := c.endpoint(kind, conversationID, "messages", "new") +
		"?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	var msgs []chatsync.Message
	if err := c.do(ctx, http.MethodGet, endpoint, nil, "", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

type postMessageRequest struct {
	Content        string  `json:"content"`
	AttachmentURL  *string `json:"attachmentUrl,omitempty"`
	AttachmentType *string `json:"attachmentType,omitempty"`
	AttachmentName *string `json:"attachmentName,omitempty"`
}

// PostMessage creates a message and returns the canonical server copy.
func (c *Client) PostMessage(ctx context.Context, kind chatsync.ConversationKind, conversationID string, out chatsync.OutgoingMessage) (*chatsync.Message, error) {
	payload := postMessageRequest{Content: out.Content}
	if out.AttachmentURL != "" {
		payload.AttachmentURL = ptr.Ptr(out.AttachmentURL)
		payload.AttachmentType = ptr.Ptr(string(out.AttachmentType))
		payload.AttachmentName = ptr.Ptr(out.AttachmentName)
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	var msg chatsync.Message
	if err := c.do(ctx, http.MethodPost, c.endpoint(kind, conversationID, "messages"), bytes.NewReader(body), "application/json", &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UploadFile posts a multipart file payload to /upload.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, data []byte) (*chatsync.UploadedFile, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if contentType != "" {
		if err := w.WriteField("type", contentType); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	var uploaded chatsync.UploadedFile
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/upload", &buf, w.FormDataContentType(), &uploaded); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

// MarkRead marks the conversation read server-side. No response body is
// expected.
func (c *Client) MarkRead(ctx context.Context, kind chatsync.ConversationKind, conversationID string) error {
	return c.do(ctx, http.MethodPost, c.endpoint(kind, conversationID, "read"), nil, "", nil)
}

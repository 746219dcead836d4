// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package upload turns a local file into a durable attachment reference
// before the send pipeline posts the message. A failed upload aborts the
// whole send before any optimistic message exists, so a broken attachment
// reference can never reach the message store.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
)

var uploadFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "hlcchat_upload_failures_total",
	Help: "Attachment uploads that failed before any optimistic insert.",
})

var (
	// ErrEmptyFile is returned for zero-byte files.
	ErrEmptyFile = errors.New("file is empty")
	// ErrTooLarge is returned when the file exceeds the configured limit.
	ErrTooLarge = errors.New("file exceeds the maximum attachment size")
	// ErrDisallowedType is returned when the detected MIME type is not on
	// the allowlist.
	ErrDisallowedType = errors.New("file type is not allowed")
)

// Limits bound what may be uploaded. A zero MaxBytes means unlimited; an
// empty allowlist admits every type.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string // exact MIME types or prefixes like "image/"
}

func (l Limits) allows(mime string) bool {
	if len(l.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range l.AllowedTypes {
		if strings.HasSuffix(allowed, "/") {
			if strings.HasPrefix(mime, allowed) {
				return true
			}
		} else if mime == allowed {
			return true
		}
	}
	return false
}

// Uploader performs single-attempt attachment uploads. No chunking or
// resumability; chat attachments are photos and small documents.
type Uploader struct {
	transport chatsync.TransportClient
	limits    Limits
	log       zerolog.Logger
}

// New creates an uploader sending through transport.
func New(transport chatsync.TransportClient, limits Limits, log zerolog.Logger) *Uploader {
	return &Uploader{
		transport: transport,
		limits:    limits,
		log:       log.With().Str("component", "uploader").Logger(),
	}
}

// Upload reads the local file, validates it against the limits, uploads it
// and returns the attachment to hang on the outgoing message. Image
// dimensions are probed locally when the format is decodable.
func (u *Uploader) Upload(ctx context.Context, path string) (*chatsync.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if u.limits.MaxBytes > 0 && int64(len(data)) > u.limits.MaxBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrTooLarge, len(data), u.limits.MaxBytes)
	}

	mime := mimetype.Detect(data).String()
	if idx := strings.IndexByte(mime, ';'); idx > 0 {
		mime = mime[:idx]
	}
	if !u.limits.allows(mime) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowedType, mime)
	}

	att := chatsync.Attachment{
		Kind:        chatsync.AttachmentDocument,
		DisplayName: filepath.Base(path),
	}
	if strings.HasPrefix(mime, "image/") {
		att.Kind = chatsync.AttachmentImage
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			att.Width = cfg.Width
			att.Height = cfg.Height
		}
	}

	uploaded, err := u.transport.UploadFile(ctx, att.DisplayName, mime, data)
	if err != nil {
		uploadFailures.Inc()
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}
	att.URL = uploaded.URL
	if uploaded.Name != "" {
		att.DisplayName = uploaded.Name
	}
	u.log.Debug().Str("url", att.URL).Str("mime", mime).Int("bytes", len(data)).Msg("Attachment uploaded")
	return &att, nil
}

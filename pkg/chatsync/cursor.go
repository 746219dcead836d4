// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chatsync

import (
	"sync"
	"time"
)

// Cursor tracks the createdAt of the newest message the client has
// incorporated for one conversation. It only moves forward; merges and
// reconciliations that would rewind it are ignored.
//
// Ordering and incremental fetch both key off createdAt with no tie-breaking
// sequence number, matching the backend contract. If the server can assign
// two messages an identical timestamp, a strictly-newer-than fetch could
// miss the second one. Fixing that requires a composite cursor on the wire,
// which the backend does not offer.
type Cursor struct {
	mu sync.Mutex
	ts time.Time
}

// Get returns the current watermark. The zero time means no baseline has
// been established yet (empty conversation, incremental polling disabled).
func (c *Cursor) Get() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Advance moves the watermark to t if t is newer. Returns whether it moved.
func (c *Cursor) Advance(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.After(c.ts) {
		return false
	}
	c.ts = t
	return true
}

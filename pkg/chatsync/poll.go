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
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is used when the caller passes a non-positive
// interval. MinPollInterval is the floor applied to runtime retuning so a
// bad config reload can't turn the loop into a busy spin.
const (
	DefaultPollInterval = 2500 * time.Millisecond
	MinPollInterval     = 500 * time.Millisecond
)

// PollLoop periodically fetches messages newer than the store's cursor and
// merges them. A transient fetch failure skips the tick and never stops the
// loop. A conversation with no baseline (zero cursor) is not polled
// incrementally; it only gets content from the initial full fetch or from a
// send establishing the first message.
type PollLoop struct {
	store     *MessageStore
	transport TransportClient
	kind      ConversationKind
	log       zerolog.Logger

	interval atomic.Int64 // nanoseconds

	// onMerge is invoked after a tick that appended new messages, with the
	// appended count. Used by the session to refresh read state.
	onMerge func(appended int)

	stopOnce sync.Once
	cancel   context.CancelFunc
	stopChan chan struct{}
	done     chan struct{}
	started  bool
}

// NewPollLoop creates a loop for one conversation. It does not start ticking
// until Start is called.
func NewPollLoop(store *MessageStore, transport TransportClient, kind ConversationKind, interval time.Duration, log zerolog.Logger) *PollLoop {
	p := &PollLoop{
		store:     store,
		transport: transport,
		kind:      kind,
		log:       log.With().Str("component", "poll_loop").Str("conversation_id", store.ConversationID()).Logger(),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	p.SetInterval(interval)
	return p
}

// SetInterval retunes the tick interval. Safe to call while the loop is
// running; the new value takes effect from the next tick.
func (p *PollLoop) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	p.interval.Store(int64(interval))
}

// Interval returns the current tick interval.
func (p *PollLoop) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// OnMerge registers a hook called after ticks that merged new messages.
// Must be set before Start.
func (p *PollLoop) OnMerge(fn func(appended int)) {
	p.onMerge = fn
}

// Start launches the polling goroutine. Calling Start twice is a no-op.
func (p *PollLoop) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Stop halts the loop synchronously: no further ticks fire after Stop
// returns, and the in-flight fetch (if any) is cancelled. Its response, if
// it still arrives, is discarded by the stopped check and by the store's
// own closed gate. Idempotent.
func (p *PollLoop) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// Done is closed once the polling goroutine has fully exited.
func (p *PollLoop) Done() <-chan struct{} {
	if !p.started {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

func (p *PollLoop) stopped() bool {
	select {
	case <-p.stopChan:
		return true
	default:
		return false
	}
}

func (p *PollLoop) run(ctx context.Context) {
	defer close(p.done)
	timer := time.NewTimer(p.Interval())
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
		p.tick(ctx)
		timer.Reset(p.Interval())
	}
}

// tick issues one incremental fetch and merges the result. Every failure
// path resolves to "try again next interval".
func (p *PollLoop) tick(ctx context.Context) {
	since := p.store.Cursor()
	if since.IsZero() {
		return
	}
	pollTicks.Inc()
	msgs, err := p.transport.FetchSince(ctx, p.kind, p.store.ConversationID(), since)
	if err != nil {
		pollErrors.Inc()
		p.log.Warn().Err(err).Time("since", since).Msg("Poll fetch failed, skipping tick")
		return
	}
	if p.stopped() || len(msgs) == 0 {
		return
	}
	appended := p.store.Merge(msgs)
	if appended > 0 {
		p.log.Debug().Int("appended", appended).Time("cursor", p.store.Cursor()).Msg("Merged polled messages")
		if p.onMerge != nil {
			p.onMerge(appended)
		}
	}
}

package chatsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The failure paths below are deliberately non-fatal and invisible to the
// user (skipped poll ticks, duplicate merges, orphaned uploads). Counters
// keep them observable without changing user-visible behavior.
var (
	pollTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_poll_ticks_total",
		Help: "Poll loop ticks that issued a fetch.",
	})
	pollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_poll_errors_total",
		Help: "Poll fetches that failed and were skipped.",
	})
	mergedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_merged_messages_total",
		Help: "Server messages newly merged into a message store.",
	})
	duplicateMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_duplicate_merges_total",
		Help: "Server messages ignored by merge because their id was already present.",
	})
	sendsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_sends_total",
		Help: "Send attempts that passed the compose guards.",
	})
	sendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_send_failures_total",
		Help: "Sends that failed after the optimistic insert.",
	})
	orphanedUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_orphaned_uploads_total",
		Help: "Uploads that succeeded but whose message post failed, leaking the file server-side.",
	})
	readMarkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlcchat_read_mark_failures_total",
		Help: "Fire-and-forget mark-read calls that failed.",
	})
)

// Package collector implements the core capture registry: an in-memory,
// internally synchronized map of collector uids to their ordered captured
// requests, plus the periodic reaper that reclaims abandoned collectors.
//
// The Store is the single source of truth. Every structural mutation
// (create, append, delete capture, delete collector, expiry) goes through
// its API under one registry lock, and each mutation publishes an event to
// the injected Notifier only after the mutation has committed, so
// subscribers never observe state that readers cannot yet see.
//
// Nothing here is persisted; process restart drops all collectors.
package collector

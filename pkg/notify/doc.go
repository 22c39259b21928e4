// Package notify fans store mutation events out to browser sessions over
// WebSocket. A session connects to /ws, sends one {"subscribe":"<uid>"}
// frame, and from then on receives capture.created, capture.deleted and
// collector.deleted events for that collector only. Missed events are not
// replayed; a late joiner catches up by listing the collector over HTTP.
package notify

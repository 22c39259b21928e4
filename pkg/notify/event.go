package notify

// Event kinds pushed to subscribers.
const (
	EventCaptureCreated   = "capture.created"
	EventCaptureDeleted   = "capture.deleted"
	EventCollectorDeleted = "collector.deleted"
)

// Event is the JSON frame delivered to every subscriber of a topic.
// RequestID is set for capture events and omitted for collector deletion.
type Event struct {
	Event     string `json:"event"`
	RequestID int    `json:"requestId,omitempty"`
}

// subscribeMessage is the single inbound call a client may make after
// connecting: join the topic for one collector uid.
type subscribeMessage struct {
	Subscribe string `json:"subscribe"`
}

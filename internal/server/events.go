package server

import (
	"encoding/json"
	"strings"
)

// Wire event names. They match the events the web client listens for.
const (
	EventUserCount = "user count"
	EventUser      = "user"
	EventChat      = "chat message"
)

// Envelope is the JSON frame exchanged over a connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UserEvent announces a presence change: a user joined (Connected=true) or
// left (Connected=false), together with the user count after the change.
type UserEvent struct {
	Username     string `json:"username"`
	CurrentUsers int    `json:"currentUsers"`
	Connected    bool   `json:"connected"`
}

// ChatEvent is one chat line as delivered to clients. Username is always the
// sender's authenticated username, never a client-supplied value.
type ChatEvent struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// InboundChat is the client→server chat payload. A username field, if sent,
// is ignored.
type InboundChat struct {
	Message string `json:"message"`
}

// encodeEvent marshals an event name and payload into a wire frame.
func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

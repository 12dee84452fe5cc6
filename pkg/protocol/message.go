// Package protocol defines the wire protocol of the wizard's live channel.
package protocol

import (
	"strconv"
)

// MessageType identifies the type of protocol message.
type MessageType uint8

const (
	// MsgEvent is sent by the client for user interactions.
	MsgEvent MessageType = iota
	// MsgRender carries freshly rendered wizard markup.
	MsgRender
	// MsgError reports a failed event.
	MsgError
	// MsgHeartbeat keeps the connection alive.
	MsgHeartbeat
)

// String returns a string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MsgEvent:
		return "event"
	case MsgRender:
		return "render"
	case MsgError:
		return "error"
	case MsgHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Client event names.
const (
	EventNext   = "next"
	EventPrev   = "prev"
	EventSubmit = "submit"
	EventInput  = "input"
	EventBlur   = "blur"

	// EventMount asks for the current markup, sent once after connecting.
	EventMount = "mount"
)

// Message represents a protocol message exchanged between client and server.
type Message struct {
	Type MessageType `json:"t" msgpack:"t"`

	// Ref correlates a reply with the event that caused it.
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Event is the event name, e.g. "next" or "input".
	Event string `json:"event,omitempty" msgpack:"event,omitempty"`

	Payload map[string]string `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Get returns a payload value.
func (m *Message) Get(key string) string {
	if m.Payload == nil {
		return ""
	}
	return m.Payload[key]
}

// Int returns a payload value parsed as an integer, or 0.
func (m *Message) Int(key string) int {
	n, err := strconv.Atoi(m.Get(key))
	if err != nil {
		return 0
	}
	return n
}

// EventMessage creates a client event.
func EventMessage(ref, event string, payload map[string]string) *Message {
	return &Message{Type: MsgEvent, Ref: ref, Event: event, Payload: payload}
}

// RenderMessage creates a render reply.
func RenderMessage(ref, html string) *Message {
	return &Message{Type: MsgRender, Ref: ref, Event: "render", Payload: map[string]string{"html": html}}
}

// ErrorMessage creates an error reply.
func ErrorMessage(ref, message string) *Message {
	return &Message{Type: MsgError, Ref: ref, Event: "error", Payload: map[string]string{"message": message}}
}

// HeartbeatMessage creates a heartbeat.
func HeartbeatMessage(ref string) *Message {
	return &Message{Type: MsgHeartbeat, Ref: ref, Event: "heartbeat"}
}

package types

import (
	"encoding/json"
	"time"
)

// Inbound websocket events.
const (
	EventJoin        = "join"
	EventSendMessage = "send_message"
)

// Outbound websocket events.
const (
	EventNewMessage = "new_message"
	EventSystem     = "system"
	EventError      = "error"

	SystemHistoryComplete = "history_complete"
)

// TimestampLayout renders message times as HH:MM.
const TimestampLayout = "15:04"

// InboundEvent is a frame received from a client. Data is decoded according
// to Event.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinPayload is the data of a join event.
type JoinPayload struct {
	RoomID int64 `json:"room_id"`
}

// SendMessagePayload is the data of a send_message event.
type SendMessagePayload struct {
	RoomID  int64  `json:"room_id"`
	Message string `json:"message"`
}

// OutboundEvent is a frame written to a client.
type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewMessagePayload is what subscribers see for each chat line.
type NewMessagePayload struct {
	UserName  string `json:"user_name"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// SystemPayload carries server notices such as history_complete.
type SystemPayload struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id,omitempty"`
	Count  int    `json:"count"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessageEvent builds the outbound event for a persisted message.
func NewMessageEvent(m *Message) OutboundEvent {
	return OutboundEvent{
		Event: EventNewMessage,
		Data: NewMessagePayload{
			UserName:  m.UserName,
			Content:   m.Content,
			Timestamp: FormatTimestamp(m.CreatedAt),
		},
	}
}

// FormatTimestamp renders t in UTC as HH:MM.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// HistoryCompleteEvent marks the end of a history replay.
func HistoryCompleteEvent(roomID int64, count int) OutboundEvent {
	return OutboundEvent{
		Event: EventSystem,
		Data:  SystemPayload{Type: SystemHistoryComplete, RoomID: roomID, Count: count},
	}
}

// ErrorEvent wraps a client-facing failure message.
func ErrorEvent(message string) OutboundEvent {
	return OutboundEvent{Event: EventError, Data: ErrorPayload{Message: message}}
}

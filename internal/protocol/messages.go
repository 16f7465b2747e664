package protocol

import "time"

// EventKind identifies the type of event sent to a room member
type EventKind string

const (
	// Server -> Client
	KindChat      EventKind = "chat"
	KindBroadcast EventKind = "broadcast"
	KindNotice    EventKind = "notice"
	KindPresence  EventKind = "presence"
	KindError     EventKind = "error"
)

// Client -> Server Messages

// Say is sent by a client for every line typed into a room. Lines that parse
// as game commands are handled by the engine after being relayed as chat.
type Say struct {
	Text string `json:"text"`
}

// Server -> Client Messages

// Event is a single line of room traffic
type Event struct {
	Kind    EventKind `json:"kind"`
	Room    string    `json:"room"`
	Sender  string    `json:"sender,omitempty"`
	Content string    `json:"content"`
	Media   string    `json:"media,omitempty"`
	Time    time.Time `json:"time"`
}

// MaxTextLength bounds a single Say message
const MaxTextLength = 512

// Package channel defines the contract between the service and the external
// messaging platform. The concrete transport lives behind the Dialer and
// Session interfaces; the rest of the service only sees events and sends.
package channel

import "context"

// MediaPayload holds downloaded media bytes and their declared mime type.
type MediaPayload struct {
	MimeType string
	Data     []byte
}

// MediaFetcher downloads the media attached to a message on demand.
type MediaFetcher func(ctx context.Context) (MediaPayload, error)

// InboundMessage is a message received from the channel.
type InboundMessage struct {
	// ID is the platform message id, stable across redeliveries.
	ID       string
	From     string
	ChatID   string
	Body     string
	HasMedia bool
	Media    MediaFetcher
}

// Event is a channel lifecycle or message event. Exactly one of the
// concrete Event* types is delivered per callback.
type Event interface {
	isEvent()
}

// EventPaired carries a fresh pairing code to display to the operator.
type EventPaired struct {
	Code string
}

// EventReady signals the session is authenticated and can send and receive.
type EventReady struct{}

// EventAuthFailure signals the stored credentials were rejected.
type EventAuthFailure struct {
	Err error
}

// EventDisconnected signals the transport dropped.
type EventDisconnected struct{}

// EventMessage wraps an inbound message.
type EventMessage struct {
	Message InboundMessage
}

func (EventPaired) isEvent()       {}
func (EventReady) isEvent()        {}
func (EventAuthFailure) isEvent()  {}
func (EventDisconnected) isEvent() {}
func (EventMessage) isEvent()      {}

// EventHandler receives session events. Handlers must not block; slow work
// belongs on the caller's queue.
type EventHandler func(ctx context.Context, ev Event)

// Session is a live connection to the messaging platform.
type Session interface {
	SendText(ctx context.Context, to, text string) error
	SendMedia(ctx context.Context, to, mimeType string, data []byte, filename string) error
	Close(ctx context.Context) error
}

// DialConfig identifies the tenant a session belongs to and where its
// credentials are stored between restarts.
type DialConfig struct {
	BranchID        string
	CredentialsPath string
}

// Dialer opens sessions. Dial returns as soon as the session object exists;
// pairing and authentication progress is reported through the handler.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig, handler EventHandler) (Session, error)
}

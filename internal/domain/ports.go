package domain

import "context"

// OutgoingMessagePort is what command handlers and the web console use to
// get text back onto a platform. Implementations enqueue; they never block.
type OutgoingMessagePort interface {
	SendMessage(ctx context.Context, platform Platform, channelID, text string) error
}

// ChatTransport is one live connection to a chat platform. The connection
// manager owns the lifecycle; everything above it only sees this surface.
//
// Connect must return an error wrapping ErrAuthFailed when the platform
// rejects the credentials, so the manager can stop retrying. Receive blocks
// until a message arrives, the context is done, or the transport is closed
// (ErrTransportClosed).
type ChatTransport interface {
	Platform() Platform
	Connect(ctx context.Context) error
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, channelID, text string) error
	DefaultChannel() string
	Close() error
}

// KVStore is the persistence collaborator used by individual command
// handlers. Values are JSON blobs; handlers treat every call as fallible.
type KVStore interface {
	Load(ctx context.Context, name string, dest any) error // ErrNotFound when absent
	Save(ctx context.Context, name string, value any) error
}

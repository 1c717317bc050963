package domain

// ConnState is the lifecycle state of one platform connection. Exactly one
// live value per connection, owned by the connection manager; everyone else
// only reads it.
type ConnState string

const (
	StateDisabled      ConnState = "disabled"
	StateConnecting    ConnState = "connecting"
	StateConnected     ConnState = "connected"
	StateDisconnecting ConnState = "disconnecting"
	StateDisconnected  ConnState = "disconnected"
	StateAuthError     ConnState = "auth_error"
	StateError         ConnState = "error"
)

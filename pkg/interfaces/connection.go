package interfaces

// Connection is a live client connection as seen by the realtime core.
// Implementations must allow WriteJSON from several goroutines.
type Connection interface {
	// GetID returns a process-unique connection identifier.
	GetID() string

	// WriteJSON queues v for delivery to the client.
	WriteJSON(v interface{}) error

	Close() error

	// IsClosed reports whether the connection has been torn down.
	IsClosed() bool

	GetUserID() int64
	GetUserName() string

	// IsAuthenticated returns true once SetCredentials has succeeded.
	IsAuthenticated() bool

	// SetCredentials attaches the identity resolved from the request token.
	SetCredentials(userID int64, userName string) error
}

package interfaces

// Channel is a pub/sub primitive keyed by string channel identifiers such as
// "room-42". Subscriptions are ephemeral and change only on connect and
// disconnect.
type Channel interface {
	// Join subscribes conn to key. Joining twice is a no-op.
	Join(conn Connection, key string) error

	// Leave removes conn from key.
	Leave(conn Connection, key string)

	// LeaveAll removes conn from every channel it joined.
	LeaveAll(conn Connection)

	// Broadcast delivers payload to every connection subscribed to key and
	// returns how many accepted it. Delivery failures are swallowed.
	Broadcast(key string, payload interface{}) int
}

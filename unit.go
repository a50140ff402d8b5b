package docingest

// Unit is an isolated execution unit. The host and the unit share no memory:
// they only exchange messages, and a posted message belongs to the receiver.
type Unit interface {
	// Post delivers a message to the unit.
	// Returns an error once the unit has been terminated.
	Post(msg *Message) error

	// Messages returns the stream of messages emitted by the unit.
	// The channel is closed when the unit stops.
	Messages() <-chan *Message

	// Terminate stops the unit unconditionally, abandoning any running task.
	Terminate() error
}

// Spawner creates a new execution unit.
type Spawner func() (Unit, error)

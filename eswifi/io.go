package eswifi

import "time"

// IO is the capability the driver consumes from the physical layer.
//
// Implementations are used by a single Device and are never called
// concurrently. Timeouts are wall-clock budgets measured from the entry of
// each call; they are not carried across calls.
type IO interface {
	// Init brings the link up and verifies the module prompt.
	//
	// It returns an error wrapping ErrTransportTimeout when the module never
	// signals readiness and ErrTransportFraming when the prompt differs.
	Init() error

	// Send transmits p to the module and returns the number of payload bytes
	// sent. It fails with an error wrapping ErrTransportTimeout when the module
	// is not ready to accept data before timeout elapses.
	Send(p []byte, timeout time.Duration) (int, error)

	// Receive reads a reply into p and returns the number of bytes stored.
	//
	// Reading stops when the module ends the message or once limit bytes were
	// stored. A limit of 0 drains the whole message, keeping what fits into p.
	// On timeout the partial data is discarded and the returned error wraps
	// ErrTransportTimeout.
	Receive(p []byte, limit int, timeout time.Duration) (int, error)

	// Delay blocks for d.
	Delay(d time.Duration)

	// Close releases the link.
	Close() error
}

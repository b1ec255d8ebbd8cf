package eswifi

import (
	"errors"
	"fmt"
)

// Sentinel errors of the driver. Errors returned by Device and by IO
// implementations wrap one of these and can be tested with errors.Is.
var (
	// Transport errors.
	ErrTransportTimeout = errors.New("eswifi: ready line not asserted before deadline")
	ErrTransportFraming = errors.New("eswifi: unexpected bring-up prompt")
	ErrTransportIO      = errors.New("eswifi: transport I/O failure")

	// Protocol errors.
	ErrProtocol           = errors.New("eswifi: module replied with ERROR")
	ErrProtocolIncomplete = errors.New("eswifi: reply exceeds command buffer")
	ErrMalformedReply     = errors.New("eswifi: malformed reply")

	// Caller errors.
	ErrCapacityExceeded = errors.New("eswifi: payload exceeds maximum size")
	ErrInvalidArgument  = errors.New("eswifi: invalid argument")

	// Lifecycle errors.
	ErrNotInitialized = errors.New("eswifi: device not initialized")
	ErrDeviceClosed   = errors.New("eswifi: device closed")
)

// Status is the classification of a raw module reply.
type Status uint8

const (
	// StatusOK means the reply ends with the OK terminator.
	StatusOK Status = iota
	// StatusError means the reply carries the ERROR terminator.
	StatusError
	// StatusNeedMore means the reply filled the requested capacity without
	// any terminator; more data is pending on the module side.
	StatusNeedMore
	// StatusTransportError means the reply is missing or unterminated.
	StatusTransportError
)

// String returns string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusNeedMore:
		return "need-more"
	case StatusTransportError:
		return "transport-error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Err maps the status to the sentinel error of the taxonomy, nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusError:
		return ErrProtocol
	case StatusNeedMore:
		return ErrProtocolIncomplete
	default:
		return ErrTransportIO
	}
}

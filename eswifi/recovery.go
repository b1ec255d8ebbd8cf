package eswifi

import (
	"bytes"
	"fmt"
	"time"
)

// receivePayload reads a bulk payload into p after the read command was issued.
//
// The module answers with a two byte line break, then the payload, then the
// OK terminator. The payload length is recovered from where the terminator
// lands:
//
//  1. Short requests (at most TerminatorLength bytes) are read together with
//     the terminator into the shared buffer and copied out.
//  2. Longer requests are read in place into p. The terminator is searched at
//     the tail and one byte before it. When neither matches, the last bytes
//     of p are carried into the tail buffer and one bounded follow-up read
//     completes the terminator.
//
// It returns the payload length, which may be 0 when no data was pending.
func (d *Device) receivePayload(p []byte, timeout time.Duration) (int, error) {
	n, err := d.io.Receive(d.scratch, len(replyPrompt), timeout)
	if err != nil {
		d.countTransportErr(err)
		return 0, fmt.Errorf("prompt: %w", err)
	}
	if n != len(replyPrompt) {
		return 0, fmt.Errorf("prompt: %w: got %d bytes", ErrTransportIO, n)
	}

	if len(p) <= TerminatorLength {
		return d.recoverShort(p, timeout)
	}

	return d.recoverLong(p, timeout)
}

func (d *Device) recoverShort(p []byte, timeout time.Duration) (int, error) {
	n, err := d.io.Receive(d.scratch, len(p)+TerminatorLength, timeout)
	if err != nil {
		d.countTransportErr(err)
		return 0, fmt.Errorf("payload: %w", err)
	}

	resp := d.scratch[:n]
	if !bytes.HasSuffix(resp, okTerminator) {
		return 0, d.payloadFailure(resp, n >= len(p)+TerminatorLength, timeout)
	}

	return copy(p, resp[:n-TerminatorLength]), nil
}

func (d *Device) recoverLong(p []byte, timeout time.Duration) (int, error) {
	// An even limit keeps every word inside p.
	n, err := d.io.Receive(p, len(p)&^1, timeout)
	if err != nil {
		d.countTransportErr(err)
		return 0, fmt.Errorf("payload: %w", err)
	}

	if end, ok := terminatorEnd(p[:n]); ok {
		return end, nil
	}

	// The terminator straddles the end of p.
	d.metrics.incRecoveryFallbackCount()
	carry := min(n, TerminatorLength)
	k := copy(d.tail, p[n-carry:n])

	m, err := d.io.Receive(d.tail[k:], TerminatorLength+1, timeout)
	if err != nil {
		d.countTransportErr(err)
		return 0, fmt.Errorf("payload: %w", err)
	}

	combined := d.tail[:k+m]
	end, ok := terminatorEnd(combined)
	if !ok {
		return 0, d.payloadFailure(combined, m >= TerminatorLength+1, timeout)
	}

	// combined[:k] already sits at p[n-carry:n].
	total := n - carry + end
	if total > len(p) {
		return 0, fmt.Errorf("payload: %w: module sent %d bytes for %d requested", ErrCapacityExceeded, total, len(p))
	}
	if end > k {
		copy(p[n:], combined[k:end])
	}

	return total, nil
}

// payloadFailure reports a payload reply without terminator. When the read
// stopped at its limit, the rest of the message is drained first.
func (d *Device) payloadFailure(resp []byte, pending bool, timeout time.Duration) error {
	status := Classify(resp, 0)
	if pending {
		d.drain(timeout)
	}
	d.metrics.incCommandErrCount()

	if status == StatusError {
		return fmt.Errorf("payload: %w: %s", ErrProtocol, errorDetail(resp))
	}

	return fmt.Errorf("payload: %w: terminator not found", ErrTransportIO)
}

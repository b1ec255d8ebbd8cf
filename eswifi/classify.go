package eswifi

import "bytes"

// Classify determines the outcome of a module reply.
//
// requested is the capacity the reply was read with. The OK terminator must
// sit at the very end of resp; an embedded copy elsewhere does not count. A
// reply carrying the ERROR marker is StatusError. A reply that filled exactly
// the requested capacity without either marker is StatusNeedMore. Anything
// else is StatusTransportError.
func Classify(resp []byte, requested int) Status {
	switch {
	case bytes.HasSuffix(resp, okTerminator):
		return StatusOK
	case bytes.Contains(resp, errorMarker):
		return StatusError
	case requested > 0 && len(resp) == requested:
		return StatusNeedMore
	default:
		return StatusTransportError
	}
}

// terminatorEnd returns the payload length of buf when the OK terminator
// sits at its tail or one byte before it.
//
// The one-byte tolerance absorbs the stray trailing byte left when the
// module ends an odd-length message inside a word.
func terminatorEnd(buf []byte) (int, bool) {
	n := len(buf)
	if bytes.HasSuffix(buf, okTerminator) {
		return n - TerminatorLength, true
	}
	if n > TerminatorLength && bytes.HasSuffix(buf[:n-1], okTerminator) {
		return n - TerminatorLength - 1, true
	}

	return 0, false
}

// replyBody strips the leading line break and the OK terminator from an OK reply.
func replyBody(resp []byte) []byte {
	resp = bytes.TrimSuffix(resp, okTerminator)
	return bytes.TrimPrefix(resp, replyPrompt)
}

// errorDetail extracts the module error text following the ERROR marker.
func errorDetail(resp []byte) string {
	i := bytes.Index(resp, errorMarker)
	if i < 0 {
		return ""
	}
	rest := resp[i+len(errorMarker):]
	if j := bytes.Index(rest, []byte("\r\n")); j >= 0 {
		rest = rest[:j]
	}

	return string(bytes.TrimSpace(bytes.TrimLeft(rest, ":")))
}

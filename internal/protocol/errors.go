package protocol

import "errors"

// Codec failures fall into two classes. OutOfBytes means the buffer may
// simply not have received the rest of the data yet — the caller may wait
// for more bytes and retry. Malformed means the stream can never parse
// and the connection is unrecoverable. Additional context is layered on
// with fmt.Errorf("...: %w", err) wrapping.

// OutOfBytesError reports that a buffer ran out of bytes while reading a
// value. What names the value being read.
type OutOfBytesError struct {
	What string
}

func (e *OutOfBytesError) Error() string {
	return "ran out of bytes reading " + e.What
}

// MalformedError reports data that can never decode as the named value.
type MalformedError struct {
	What   string
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed " + e.What + ": " + e.Reason
}

// IsOutOfBytes reports whether err is, or wraps, an OutOfBytesError.
func IsOutOfBytes(err error) bool {
	var oob *OutOfBytesError
	return errors.As(err, &oob)
}

// IsMalformed reports whether err is, or wraps, a MalformedError.
func IsMalformed(err error) bool {
	var mal *MalformedError
	return errors.As(err, &mal)
}

package wire

import "errors"

var (
	// ErrMalformed covers any status line, field line or chunk framing that
	// does not follow HTTP/1.1 syntax.
	ErrMalformed = errors.New("wire: malformed message")
	// ErrLineTooLong is returned when a head line exceeds the configured limit.
	ErrLineTooLong = errors.New("wire: line too long")
	// ErrTooManyFields is returned when a head carries more fields than allowed.
	ErrTooManyFields = errors.New("wire: too many header fields")
	// ErrInvalidContentLength is returned for unparsable or conflicting lengths.
	ErrInvalidContentLength = errors.New("wire: invalid content-length")
	// ErrLengthMismatch is returned when a length-delimited body is not
	// exactly as long as declared.
	ErrLengthMismatch = errors.New("wire: content-length mismatch")
	// ErrInvalidField is returned when asked to write an illegal field name.
	ErrInvalidField = errors.New("wire: invalid header field")
	// ErrWriterClosed is returned by writes after Finish.
	ErrWriterClosed = errors.New("wire: body writer finished")
)

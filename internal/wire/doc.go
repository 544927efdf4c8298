// Package wire implements HTTP/1.1 message framing for the client side of an
// exchange.
//
// Outbound, it writes the request head ([WriteRequestHead]) and frames the
// body either as a fixed number of bytes ([LengthWriter]) or with chunked
// transfer-coding ([ChunkedWriter]), whose Finish call emits the terminal
// chunk followed by any trailer fields.
//
// Inbound, [HeadReader] parses the status line and the header section,
// [ResponseFraming] decides how the body is delimited, and [NewBody] returns a
// reader for that framing. Every body reports whether it has been drained so
// the caller can decide whether the connection may be reused.
//
// Syntax violations are reported as [ErrMalformed] (or a more specific
// sentinel) wrapped with context; callers classify them with errors.Is.
package wire

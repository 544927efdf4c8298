package message

import "strconv"

// DefaultProto is the protocol version written on every request line.
const DefaultProto = "HTTP/1.1"

// RequestLine renders "METHOD path HTTP/1.1".
func RequestLine(method, path, proto string) string {
	if proto == "" {
		proto = DefaultProto
	}
	if path == "" {
		path = "/"
	}
	return method + " " + path + " " + proto
}

// StatusLine renders "HTTP/1.1 200 OK". A missing reason is left empty.
func StatusLine(proto string, code int, reason string) string {
	if proto == "" {
		proto = DefaultProto
	}
	line := proto + " " + strconv.Itoa(code)
	if reason != "" {
		line += " " + reason
	}
	return line
}

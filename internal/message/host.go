package message

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is used when a host is given without an explicit port.
const DefaultPort = 80

// ErrUnsupportedScheme is returned for targets that are not plain http.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Host identifies an origin server: scheme, host name and port.
type Host struct {
	Scheme string
	Name   string
	Port   int
}

// NewHost returns an http host on the default port.
func NewHost(name string) Host {
	return Host{Scheme: "http", Name: name, Port: DefaultPort}
}

// ParseHost accepts "name", "name:port" or "http://name[:port][/...]".
// Any path component is ignored.
func ParseHost(s string) (Host, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Host{}, errors.New("host cannot be empty")
	}
	scheme := "http"
	if i := strings.Index(s, "://"); i >= 0 {
		scheme = strings.ToLower(s[:i])
		s = s[i+3:]
	}
	if scheme != "http" {
		return Host{}, fmt.Errorf("%w %q: only http is supported", ErrUnsupportedScheme, scheme)
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return Host{}, errors.New("host name cannot be empty")
	}

	name, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port; strip IPv6 brackets if present.
		name = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		return Host{Scheme: scheme, Name: name, Port: DefaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Host{}, fmt.Errorf("invalid port %q", portStr)
	}
	if name == "" {
		return Host{}, errors.New("host name cannot be empty")
	}
	return Host{Scheme: scheme, Name: name, Port: port}, nil
}

// Address returns the dialable "name:port" form.
func (h Host) Address() string {
	port := h.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(h.Name, strconv.Itoa(port))
}

// Authority returns the value for the Host header; the port is omitted
// when it is the default.
func (h Host) Authority() string {
	if h.Port == 0 || h.Port == DefaultPort {
		if strings.Contains(h.Name, ":") {
			return "[" + h.Name + "]"
		}
		return h.Name
	}
	return h.Address()
}

func (h Host) String() string {
	scheme := h.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + h.Authority()
}

// IsZero reports whether h names no host.
func (h Host) IsZero() bool {
	return h.Name == ""
}

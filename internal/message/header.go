package message

import (
	"net/textproto"
	"strings"
)

// Field is a single header field as it appears on the wire.
type Field struct {
	Name  string
	Value string
}

func (f Field) String() string {
	return f.Name + ": " + f.Value
}

// Header is an ordered list of fields. Duplicate names are permitted and
// lookups are case-insensitive; the original spelling of a name is kept.
type Header []Field

// NewHeader builds a Header from alternating name/value pairs.
func NewHeader(pairs ...string) Header {
	h := make(Header, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h = append(h, Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return h
}

// Add appends a field, keeping any existing fields with the same name.
func (h *Header) Add(name, value string) {
	*h = append(*h, Field{Name: name, Value: value})
}

// Set replaces every field named name with a single field.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	kept := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	*h = kept
}

// Get returns the first value for name, or "".
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether at least one field named name is present.
func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Values returns all values for name in wire order.
func (h Header) Values(name string) []string {
	var out []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Tokens splits every value of name on commas and returns the trimmed,
// lower-cased tokens. Used for list-valued fields such as Connection.
func (h Header) Tokens(name string) []string {
	var out []string
	for _, v := range h.Values(name) {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// HasToken reports whether the list-valued field name contains token.
func (h Header) HasToken(name, token string) bool {
	token = strings.ToLower(token)
	for _, tok := range h.Tokens(name) {
		if tok == token {
			return true
		}
	}
	return false
}

// Names returns the distinct field names in first-seen order, canonicalized.
func (h Header) Names() []string {
	seen := make(map[string]struct{}, len(h))
	names := make([]string, 0, len(h))
	for _, f := range h {
		key := textproto.CanonicalMIMEHeaderKey(f.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, key)
	}
	return names
}

// Clone returns a copy that does not share storage with h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}

// Map converts h to a canonical-key map, as used by JSON reports.
func (h Header) Map() map[string][]string {
	m := make(map[string][]string, len(h))
	for _, f := range h {
		key := textproto.CanonicalMIMEHeaderKey(f.Name)
		m[key] = append(m[key], f.Value)
	}
	return m
}

package message

import "strings"

// ContentType is a media type with an optional charset parameter.
type ContentType struct {
	MimeType string
	Charset  string
}

var (
	TextPlain              = ContentType{MimeType: "text/plain"}
	ApplicationOctetStream = ContentType{MimeType: "application/octet-stream"}
	ApplicationJSON        = ContentType{MimeType: "application/json"}
)

// WithCharset returns a copy of ct carrying the given charset.
func (ct ContentType) WithCharset(charset string) ContentType {
	ct.Charset = charset
	return ct
}

// IsZero reports whether no media type is set.
func (ct ContentType) IsZero() bool {
	return ct.MimeType == ""
}

func (ct ContentType) String() string {
	if ct.Charset == "" {
		return ct.MimeType
	}
	return ct.MimeType + "; charset=" + ct.Charset
}

// ParseContentType reads a Content-Type field value. Parameters other than
// charset are dropped.
func ParseContentType(v string) ContentType {
	parts := strings.Split(v, ";")
	ct := ContentType{MimeType: strings.ToLower(strings.TrimSpace(parts[0]))}
	for _, p := range parts[1:] {
		k, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "charset") {
			ct.Charset = strings.Trim(strings.TrimSpace(val), `"`)
		}
	}
	return ct
}

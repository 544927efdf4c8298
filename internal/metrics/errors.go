package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/torosent/h1exec/internal/requester"
	"github.com/torosent/h1exec/internal/runner"
)

var kindLabels = map[requester.Kind]string{
	requester.KindConnection: "Connection failed",
	requester.KindTimeout:    "Inactivity timeout",
	requester.KindProtocol:   "Malformed response",
	requester.KindWrite:      "Request write failed",
	requester.KindListener:   "Listener aborted exchange",
}

// ErrorLabel names the failure class of err for the report breakdown.
// Exchange failures are labelled by kind, HTTP error statuses by class and
// anything else by its Go type.
func ErrorLabel(err error) string {
	if err == nil {
		return ""
	}
	if label, ok := kindLabels[requester.KindOf(err)]; ok {
		return label
	}
	var statusErr *runner.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("HTTP %dxx response", statusErr.StatusCode/100)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Context deadline exceeded"
	}
	if errors.Is(err, context.Canceled) {
		return "Cancelled"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "Network operation failed"
	}
	if _, ok := err.(interface{ Unwrap() []error }); ok {
		return "Multiple errors"
	}
	return TypeLabel(fmt.Sprintf("%T", err))
}

// TypeLabel turns a Go type name such as "*wire.ChunkSizeError" into
// "Chunk Size Error (wire)".
func TypeLabel(typeName string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if cleaned == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}
	pkg, name, found := strings.Cut(cleaned, ".")
	if !found {
		pkg, name = "", cleaned
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		pretty = name
	}
	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

// humanizeTypeName splits CamelCase into words, keeping acronyms whole.
func humanizeTypeName(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if !isAllUpper(word) {
			word = capitalize(word)
		}
		words = append(words, word)
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			switch {
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)):
				flush()
			case unicode.IsDigit(r) && !unicode.IsDigit(prev):
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/torosent/h1exec/internal/message"
)

// OutputFormat selects how the bench report is rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

const (
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxIdlePerHost = 10
)

// Config is the merged result of the config file and flags.
type Config struct {
	Target      string            `mapstructure:"target"`
	Method      string            `mapstructure:"method"`
	Path        string            `mapstructure:"path"`
	Headers     map[string]string `mapstructure:"headers"`
	Body        string            `mapstructure:"body"`
	BodyFile    string            `mapstructure:"body_file"`
	ContentType string            `mapstructure:"content_type"`
	Stream      bool              `mapstructure:"stream"`
	Trailers    map[string]string `mapstructure:"trailers"`
	UserAgent   string            `mapstructure:"user_agent"`
	Socket      SocketConfig      `mapstructure:"socket"`
	Total       int               `mapstructure:"total"`
	Concurrency int               `mapstructure:"concurrency"`
	Rate        int               `mapstructure:"rate"`
	Retries     int               `mapstructure:"retries"`
	Output      OutputFormat      `mapstructure:"output"`
	Journal     string            `mapstructure:"journal"`
	Progress    bool              `mapstructure:"progress"`
	Verbose     bool              `mapstructure:"verbose"`
	LogErrors   bool              `mapstructure:"log_errors"`
	Extractors  []Extractor       `mapstructure:"extract"`
	Thresholds  []string          `mapstructure:"thresholds"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	ConfigFile  string            `mapstructure:"-"`
}

// SocketConfig carries the transport settings handed to the requester.
type SocketConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// SoTimeout bounds inactivity on every read and write of an exchange.
	SoTimeout      time.Duration `mapstructure:"timeout"`
	MaxIdlePerHost int           `mapstructure:"max_idle_per_host"`
}

// Extractor names a value pulled from a JSON response body.
type Extractor struct {
	Name     string `mapstructure:"name"`
	JSONPath string `mapstructure:"jsonpath"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate overrides whether traceparent is sent. Nil follows Enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an OTLP endpoint is configured directly or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether traceparent is written into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// TargetHost parses Target.
func (c Config) TargetHost() (message.Host, error) {
	return message.ParseHost(c.Target)
}

// HeaderFields returns the configured headers sorted by name.
func (c Config) HeaderFields() message.Header {
	return sortedFields(c.Headers)
}

// TrailerFields returns the configured trailers sorted by name.
func (c Config) TrailerFields() message.Header {
	return sortedFields(c.Trailers)
}

func sortedFields(m map[string]string) message.Header {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	h := make(message.Header, 0, len(names))
	for _, name := range names {
		h.Add(name, m[name])
	}
	return h
}

// ValidationError lists every problem Validate found.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual problems.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

var (
	methodPattern   = regexp.MustCompile(`^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$`)
	variablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks the merged configuration and prints warnings for
// aggressive load settings.
func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if strings.TrimSpace(c.Target) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if _, err := c.TargetHost(); err != nil {
		issues = append(issues, fmt.Sprintf("target: %v", err))
	}
	if !methodPattern.MatchString(c.Method) {
		issues = append(issues, fmt.Sprintf("method %q is not a valid token", c.Method))
	}
	if !strings.HasPrefix(c.Path, "/") {
		issues = append(issues, "path must start with /")
	}

	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.", c.Concurrency))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Total < 1 {
		issues = append(issues, "total must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Socket.SoTimeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Socket.ConnectTimeout < 0 {
		issues = append(issues, "connect_timeout must be >= 0")
	}
	if c.Socket.MaxIdlePerHost < 0 {
		issues = append(issues, "max_idle_per_host must be >= 0")
	}
	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}
	if len(c.Trailers) > 0 && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "trailers need a chunked inline body and cannot be combined with bodyFile")
	}
	for name := range c.Trailers {
		if !methodPattern.MatchString(name) {
			issues = append(issues, fmt.Sprintf("trailer name %q is not a valid token", name))
		}
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be one of text, json, yaml (got %q)", c.Output))
	}

	for i, th := range c.Thresholds {
		if strings.TrimSpace(th) == "" {
			issues = append(issues, fmt.Sprintf("thresholds[%d]: empty threshold", i))
		}
	}
	issues = append(issues, validateExtractors(c.Extractors)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateExtractors(extractors []Extractor) []string {
	var issues []string
	seen := make(map[string]bool, len(extractors))
	for i, ex := range extractors {
		if strings.TrimSpace(ex.JSONPath) == "" {
			issues = append(issues, fmt.Sprintf("extract[%d]: jsonpath is required", i))
		}
		if !variablePattern.MatchString(ex.Name) {
			issues = append(issues, fmt.Sprintf("extract[%d]: name %q must be a valid identifier", i, ex.Name))
			continue
		}
		if seen[ex.Name] {
			issues = append(issues, fmt.Sprintf("extract[%d]: duplicate name %q", i, ex.Name))
		}
		seen[ex.Name] = true
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http (got %q)", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample_rate must be between 0.0 and 1.0 (got %g)", t.SampleRate))
	}
	return issues
}

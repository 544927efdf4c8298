package config

import (
	"fmt"
	"net/textproto"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "h1exec",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Request flags
	flags.String("target", "", "Target host (name, name:port or http://name:port)")
	flags.StringP("method", "X", "GET", "HTTP method to use")
	flags.String("path", "/", "Request path")
	flags.StringArrayP("header", "H", nil, "Additional request header as 'Name: value' or name=value (repeatable)")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")
	flags.String("content-type", "", "Content type of the request body")
	flags.Bool("stream", false, "Send the body chunked, without a declared length")
	flags.StringArray("trailer", nil, "Trailer field sent after a chunked body (repeatable)")
	flags.String("user-agent", "", "User-Agent value ('-' sends none)")

	// Socket flags
	flags.Duration("timeout", DefaultTimeout, "Inactivity timeout for every read and write")
	flags.Duration("connect-timeout", DefaultConnectTimeout, "Connection establishment timeout")
	flags.Int("max-idle-per-host", DefaultMaxIdlePerHost, "Idle persistent connections kept per host")

	// Run control flags
	flags.IntP("total", "n", 1, "Total number of exchanges to run")
	flags.IntP("concurrency", "c", 1, "Number of concurrent workers")
	flags.IntP("rate", "r", 0, "Exchanges per second limit (0 means unlimited)")
	flags.Int("retries", 0, "Number of retries per exchange")

	// Output flags
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.String("journal", "", "Append one JSON line per exchange to this file")
	flags.Bool("progress", false, "Show a live progress line on stderr")
	flags.BoolP("verbose", "v", false, "Log connection handling to stderr")
	flags.Bool("log-errors", false, "Log each failed exchange to stderr")
	flags.StringArray("extract", nil, "Extract a JSON value from the response as name=path (repeatable)")
	flags.StringArray("threshold", nil, "Fail the bench when an assertion such as 'exchange_duration:p99 < 500' does not hold (repeatable)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of exchanges to trace (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Use a plaintext connection to the collector")
	flags.Bool("tracing-propagate", false, "Send W3C traceparent with each request")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for _, field := range []struct {
		flag string
		dst  *string
	}{
		{"target", &cfg.Target},
		{"method", &cfg.Method},
		{"path", &cfg.Path},
		{"content-type", &cfg.ContentType},
		{"user-agent", &cfg.UserAgent},
		{"journal", &cfg.Journal},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	} {
		if fs.Changed(field.flag) {
			val, err := fs.GetString(field.flag)
			if err != nil {
				return err
			}
			*field.dst = strings.TrimSpace(val)
		}
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(val)
	}

	for _, field := range []struct {
		flag string
		dst  *int
	}{
		{"total", &cfg.Total},
		{"concurrency", &cfg.Concurrency},
		{"rate", &cfg.Rate},
		{"retries", &cfg.Retries},
		{"max-idle-per-host", &cfg.Socket.MaxIdlePerHost},
	} {
		if fs.Changed(field.flag) {
			val, err := fs.GetInt(field.flag)
			if err != nil {
				return err
			}
			*field.dst = val
		}
	}

	for _, field := range []struct {
		flag string
		dst  *bool
	}{
		{"stream", &cfg.Stream},
		{"progress", &cfg.Progress},
		{"verbose", &cfg.Verbose},
		{"log-errors", &cfg.LogErrors},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	} {
		if fs.Changed(field.flag) {
			val, err := fs.GetBool(field.flag)
			if err != nil {
				return err
			}
			*field.dst = val
		}
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Socket.SoTimeout = val
	}
	if fs.Changed("connect-timeout") {
		val, err := fs.GetDuration("connect-timeout")
		if err != nil {
			return err
		}
		cfg.Socket.ConnectTimeout = val
	}

	if fs.Changed("header") {
		vals, err := fs.GetStringArray("header")
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			name, value, err := splitField(entry)
			if err != nil {
				return fmt.Errorf("header: %w", err)
			}
			cfg.Headers[textproto.CanonicalMIMEHeaderKey(name)] = value
		}
	}
	if fs.Changed("trailer") {
		vals, err := fs.GetStringArray("trailer")
		if err != nil {
			return err
		}
		cfg.Trailers = make(map[string]string, len(vals))
		for _, entry := range vals {
			name, value, err := splitField(entry)
			if err != nil {
				return fmt.Errorf("trailer: %w", err)
			}
			cfg.Trailers[name] = value
		}
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append([]string(nil), vals...)
	}
	if fs.Changed("extract") {
		vals, err := fs.GetStringArray("extract")
		if err != nil {
			return err
		}
		cfg.Extractors = cfg.Extractors[:0]
		for _, entry := range vals {
			ex, err := parseExtractorFlag(entry)
			if err != nil {
				return err
			}
			cfg.Extractors = append(cfg.Extractors, ex)
		}
	}
	return nil
}

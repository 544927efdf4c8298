package config

import (
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	return l.LoadFlags(flagSet)
}

// LoadFlags builds a Config from an already parsed flag set, typically the
// one cobra parsed for a subcommand. A --config file is read first and any
// flag the user set explicitly overrides it.
func (Loader) LoadFlags(flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	settings := cfgViper.AllSettings()

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.Target = strings.TrimSpace(cfg.Target)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(string(cfg.Output))))
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// Defaults returns the configuration used before any file or flag applies.
func Defaults() *Config {
	return &Config{
		Method:      "GET",
		Path:        "/",
		Headers:     map[string]string{},
		Total:       1,
		Concurrency: 1,
		Output:      OutputText,
		Socket: SocketConfig{
			ConnectTimeout: DefaultConnectTimeout,
			SoTimeout:      DefaultTimeout,
			MaxIdlePerHost: DefaultMaxIdlePerHost,
		},
		Tracing: TracingConfig{SampleRate: 1.0},
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}

	stringFields := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.Target, []string{"target"}},
		{&cfg.Path, []string{"path"}},
		{&cfg.Body, []string{"body"}},
		{&cfg.BodyFile, []string{"bodyfile", "body_file", "body-file"}},
		{&cfg.ContentType, []string{"content_type", "contenttype", "content-type"}},
		{&cfg.UserAgent, []string{"user_agent", "useragent", "user-agent"}},
		{&cfg.Journal, []string{"journal"}},
	}
	for _, field := range stringFields {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.keys[0], err)
			}
			*field.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val != "" {
			cfg.Output = OutputFormat(val)
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "trailers"); ok {
		trailers, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("trailers: %w", err)
		}
		cfg.Trailers = trailers
	}

	intFields := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.Total, []string{"total"}},
		{&cfg.Concurrency, []string{"concurrency"}},
		{&cfg.Rate, []string{"rate"}},
		{&cfg.Retries, []string{"retries"}},
		{&cfg.Socket.MaxIdlePerHost, []string{"max_idle_per_host", "maxidleperhost"}},
	}
	for _, field := range intFields {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.keys[0], err)
			}
			*field.dst = val
		}
	}

	boolFields := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.Stream, []string{"stream"}},
		{&cfg.Progress, []string{"progress"}},
		{&cfg.Verbose, []string{"verbose"}},
		{&cfg.LogErrors, []string{"log_errors", "logerrors", "log-errors"}},
	}
	for _, field := range boolFields {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.keys[0], err)
			}
			*field.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Socket.SoTimeout = val
	}
	if raw, ok := lookupSetting(settings, "connect_timeout", "connecttimeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("connect_timeout: %w", err)
		}
		cfg.Socket.ConnectTimeout = val
	}

	if raw, ok := lookupSetting(settings, "socket"); ok {
		if err := applySocketSettings(&cfg.Socket, raw); err != nil {
			return fmt.Errorf("socket: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "extract", "extractors"); ok {
		extractors, err := parseExtractors(raw)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		cfg.Extractors = extractors
	}

	if raw, ok := lookupSetting(settings, "thresholds", "threshold"); ok {
		items, err := toInterfaceSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = cfg.Thresholds[:0]
		for i, item := range items {
			val, err := asString(item)
			if err != nil {
				return fmt.Errorf("thresholds[%d]: %w", i, err)
			}
			cfg.Thresholds = append(cfg.Thresholds, strings.TrimSpace(val))
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applySocketSettings(socket *SocketConfig, value any) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "connect_timeout"); ok {
		if socket.ConnectTimeout, err = asDuration(raw); err != nil {
			return fmt.Errorf("connect_timeout: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "timeout", "so_timeout"); ok {
		if socket.SoTimeout, err = asDuration(raw); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "max_idle_per_host"); ok {
		if socket.MaxIdlePerHost, err = asInt(raw); err != nil {
			return fmt.Errorf("max_idle_per_host: %w", err)
		}
	}
	return nil
}

func parseExtractors(value any) ([]Extractor, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	extractors := make([]Extractor, 0, len(items))
	for i, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		var ex Extractor
		if raw, ok := lookupSetting(entry, "name", "var"); ok {
			val, err := asString(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d: name: %w", i, err)
			}
			ex.Name = strings.TrimSpace(val)
		}
		if raw, ok := lookupSetting(entry, "jsonpath", "json_path"); ok {
			val, err := asString(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d: jsonpath: %w", i, err)
			}
			ex.JSONPath = strings.TrimSpace(val)
		}
		extractors = append(extractors, ex)
	}
	return extractors, nil
}

// parseExtractorFlag accepts "name=json.path".
func parseExtractorFlag(entry string) (Extractor, error) {
	name, path, ok := strings.Cut(entry, "=")
	if !ok {
		return Extractor{}, fmt.Errorf("extract must be in name=jsonpath format: %s", entry)
	}
	return Extractor{Name: strings.TrimSpace(name), JSONPath: strings.TrimSpace(path)}, nil
}

func applyTracingSettings(tracing *TracingConfig, value any) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	for _, field := range []struct {
		dst *string
		key string
	}{
		{&tracing.Endpoint, "endpoint"},
		{&tracing.Protocol, "protocol"},
		{&tracing.ServiceName, "service_name"},
	} {
		if raw, ok := lookupSetting(settings, field.key); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.key, err)
			}
			*field.dst = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "sample_rate"); ok {
		if tracing.SampleRate, err = asFloat64(raw); err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if tracing.Insecure, err = asBool(raw); err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = &val
	}
	return nil
}

// splitField accepts "Name: value" or "Name=value".
func splitField(entry string) (string, string, error) {
	sep := strings.IndexAny(entry, ":=")
	if sep <= 0 {
		return "", "", fmt.Errorf("field must be in 'Name: value' or name=value format: %s", entry)
	}
	name := strings.TrimSpace(entry[:sep])
	if name == "" {
		return "", "", fmt.Errorf("field name cannot be empty")
	}
	return name, strings.TrimSpace(entry[sep+1:]), nil
}

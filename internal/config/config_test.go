package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/h1exec/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Target != "" {
		t.Errorf("Target = %q, want empty", cfg.Target)
	}
	if cfg.Method != "GET" {
		t.Errorf("Method = %q, want GET", cfg.Method)
	}
	if cfg.Path != "/" {
		t.Errorf("Path = %q, want /", cfg.Path)
	}
	if cfg.Concurrency != 1 || cfg.Total != 1 {
		t.Errorf("Concurrency = %d, Total = %d, want 1 and 1", cfg.Concurrency, cfg.Total)
	}
	if cfg.Socket.SoTimeout != 5*time.Second {
		t.Errorf("SoTimeout = %s, want 5s", cfg.Socket.SoTimeout)
	}
	if cfg.Socket.ConnectTimeout != config.DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %s, want %s", cfg.Socket.ConnectTimeout, config.DefaultConnectTimeout)
	}
	if cfg.Output != config.OutputText {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("SampleRate = %g, want 1", cfg.Tracing.SampleRate)
	}
	if len(cfg.Headers) != 0 {
		t.Errorf("Headers len = %d, want 0", len(cfg.Headers))
	}
}

func TestHelpRequested(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"target": "http://api.example.com:8080",
		"method": "put",
		"path": "/put",
		"headers": {"x-request-id": "abc"},
		"body": "{\"foo\":\"bar\"}",
		"content_type": "application/json",
		"concurrency": 10,
		"rate": 100,
		"total": 500,
		"timeout": "45s",
		"connect_timeout": "3s",
		"retries": 3,
		"output": "JSON",
		"extract": [{"name": "origin", "jsonpath": "origin"}],
		"tracing": {"endpoint": "localhost:4317", "protocol": "http", "sample_rate": 0.5, "propagate": false}
	}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Target != "http://api.example.com:8080" {
		t.Errorf("Target = %q", cfg.Target)
	}
	if cfg.Method != "PUT" {
		t.Errorf("Method = %q, want PUT", cfg.Method)
	}
	if cfg.Path != "/put" {
		t.Errorf("Path = %q, want /put", cfg.Path)
	}
	if cfg.Headers["X-Request-Id"] != "abc" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.Concurrency != 10 || cfg.Rate != 100 || cfg.Total != 500 || cfg.Retries != 3 {
		t.Errorf("run control = %d/%d/%d/%d", cfg.Concurrency, cfg.Rate, cfg.Total, cfg.Retries)
	}
	if cfg.Socket.SoTimeout != 45*time.Second || cfg.Socket.ConnectTimeout != 3*time.Second {
		t.Errorf("socket = %+v", cfg.Socket)
	}
	if cfg.Output != config.OutputJSON {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if len(cfg.Extractors) != 1 || cfg.Extractors[0].Name != "origin" || cfg.Extractors[0].JSONPath != "origin" {
		t.Errorf("Extractors = %+v", cfg.Extractors)
	}
	if cfg.Tracing.Protocol != "http" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when set in file")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
target: httpbin.org
method: POST
path: /post
body: hello
stream: true
trailers:
  trailer1: And goodbye
socket:
  timeout: 2s
  max_idle_per_host: 3
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config=" + path, "--timeout=7s"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Stream {
		t.Error("Stream = false, want true")
	}
	if cfg.Trailers["trailer1"] != "And goodbye" {
		t.Errorf("Trailers = %v", cfg.Trailers)
	}
	if cfg.Socket.MaxIdlePerHost != 3 {
		t.Errorf("MaxIdlePerHost = %d, want 3", cfg.Socket.MaxIdlePerHost)
	}
	if cfg.Socket.SoTimeout != 7*time.Second {
		t.Errorf("SoTimeout = %s, want the flag value 7s", cfg.Socket.SoTimeout)
	}
	host, err := cfg.TargetHost()
	if err != nil {
		t.Fatalf("TargetHost() error = %v", err)
	}
	if host.Address() != "httpbin.org:80" {
		t.Errorf("Address = %q, want httpbin.org:80", host.Address())
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestFlagBodyOverridesConfigBodyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"target": "localhost", "body_file": "payload.bin"}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--body", "inline"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Body != "inline" || cfg.BodyFile != "" {
		t.Errorf("Body = %q, BodyFile = %q", cfg.Body, cfg.BodyFile)
	}
}

func TestHeaderAndTrailerFlags(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{
		"--target", "localhost:8080",
		"-H", "accept: text/plain, application/json",
		"-H", "x-b=2",
		"--trailer", "trailer1: And goodbye",
		"--extract", "origin=origin",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	fields := cfg.HeaderFields()
	if len(fields) != 2 || fields[0].Name != "Accept" || fields[0].Value != "text/plain, application/json" {
		t.Errorf("HeaderFields() = %v", fields)
	}
	if fields[1].Name != "X-B" || fields[1].Value != "2" {
		t.Errorf("HeaderFields()[1] = %v", fields[1])
	}
	trailers := cfg.TrailerFields()
	if len(trailers) != 1 || trailers[0].Name != "trailer1" || trailers[0].Value != "And goodbye" {
		t.Errorf("TrailerFields() = %v", trailers)
	}
	if len(cfg.Extractors) != 1 || cfg.Extractors[0].Name != "origin" {
		t.Errorf("Extractors = %+v", cfg.Extractors)
	}
}

func TestMalformedHeaderFlag(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"-H", "novalue"}); err == nil {
		t.Fatal("expected error for header without separator")
	}
}

func TestConfigValidationErrors(t *testing.T) {
	valid := func() config.Config {
		cfg := *config.Defaults()
		cfg.Target = "localhost:8080"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing target", func(c *config.Config) { c.Target = "" }, "target is required"},
		{"bad target", func(c *config.Config) { c.Target = "https://example.com" }, "target"},
		{"bad method", func(c *config.Config) { c.Method = "GET ME" }, "method"},
		{"relative path", func(c *config.Config) { c.Path = "post" }, "path must start with /"},
		{"zero concurrency", func(c *config.Config) { c.Concurrency = 0 }, "concurrency must be >= 1"},
		{"zero total", func(c *config.Config) { c.Total = 0 }, "total must be >= 1"},
		{"negative rate", func(c *config.Config) { c.Rate = -1 }, "rate must be >= 0"},
		{"negative retries", func(c *config.Config) { c.Retries = -1 }, "retries must be >= 0"},
		{"negative timeout", func(c *config.Config) { c.Socket.SoTimeout = -time.Second }, "timeout must be >= 0"},
		{"body and file", func(c *config.Config) { c.Body = "x"; c.BodyFile = "y" }, "mutually exclusive"},
		{"trailers with file", func(c *config.Config) {
			c.BodyFile = "y"
			c.Trailers = map[string]string{"t": "v"}
		}, "trailers need a chunked inline body"},
		{"bad output", func(c *config.Config) { c.Output = "xml" }, "output must be one of"},
		{"extract without path", func(c *config.Config) {
			c.Extractors = []config.Extractor{{Name: "a"}}
		}, "jsonpath is required"},
		{"extract bad name", func(c *config.Config) {
			c.Extractors = []config.Extractor{{Name: "1a", JSONPath: "a"}}
		}, "valid identifier"},
		{"tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "thrift" }, "tracing protocol"},
		{"tracing sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("baseline Validate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, issue := range verr.Issues() {
				if strings.Contains(issue, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("issues %v do not mention %q", verr.Issues(), tt.want)
			}
		})
	}
}

func TestTracingConfigEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if (config.TracingConfig{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(config.TracingConfig{Endpoint: "localhost:4317"}).ShouldPropagate() {
		t.Error("enabled tracing should propagate by default")
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	if !(config.TracingConfig{}).Enabled() {
		t.Error("environment endpoint should enable tracing")
	}
}

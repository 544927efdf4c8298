package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/h1exec/internal/metrics"
	"github.com/torosent/h1exec/internal/threshold"
)

// Format selects how a bench report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Print renders stats in the requested format.
func Print(w io.Writer, format Format, stats metrics.Stats) error {
	switch format {
	case FormatJSON:
		return PrintJSONReport(w, stats)
	case FormatYAML:
		return PrintYAMLReport(w, stats)
	case FormatText, "":
		PrintReport(w, stats)
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Exchange Results ---")
	fmt.Fprintf(w, "Total Exchanges:   %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Exchanges/sec:     %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)
	fmt.Fprintf(w, "  Head P50:        %s\n", stats.HeadP50Latency)
	fmt.Fprintf(w, "  Head P99:        %s\n", stats.HeadP99Latency)
	fmt.Fprintln(w, "\nConnections:")
	fmt.Fprintf(w, "  Kept alive:      %d\n", stats.KeptAlive)
	fmt.Fprintf(w, "  Closed:          %d\n", stats.Closed)
	fmt.Fprintf(w, "  Bytes sent:      %d\n", stats.BytesSent)
	fmt.Fprintf(w, "  Bytes received:  %d\n", stats.BytesReceived)
	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, stats.StatusBuckets, "  ")
	}
	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		labels := make([]string, 0, len(stats.Errors))
		for label := range stats.Errors {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if stats.Errors[labels[i]] == stats.Errors[labels[j]] {
				return labels[i] < labels[j]
			}
			return stats.Errors[labels[i]] > stats.Errors[labels[j]]
		})
		for _, label := range labels {
			fmt.Fprintf(w, "  %s: %d\n", label, stats.Errors[label])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, stats metrics.Stats) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(stats); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, row.Protocol, row.Code, row.Count)
	}
	classes := metrics.StatusClassCounts(buckets)
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, classes[name]))
	}
	fmt.Fprintf(w, "%sBy class: %s\n", indent, strings.Join(parts, " "))
}

// PrintThresholds writes one line per evaluated threshold and a summary.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	failed := threshold.Failed(results)
	fmt.Fprintf(w, "  %d passed, %d failed\n", len(results)-failed, failed)
}

// Package metrics aggregates exchange outcomes for the bench report.
//
// A [Collector] keeps hdrhistogram latency percentiles, success and failure
// counts, failures grouped by kind, and response status buckets:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.RecordRequest(latency, err, &metrics.RequestMetadata{Proto: "HTTP/1.1", StatusCode: 200})
//	stats := collector.Stats(collector.Elapsed())
//
// A [Listener] plugs the same Collector into the requester as a
// StreamListener and adds what only the protocol events can see: time to
// the response head, whether each connection was kept alive, and the bytes
// moved per exchange.
//
// The Collector is safe for concurrent use.
package metrics

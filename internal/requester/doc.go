// Package requester executes blocking HTTP/1.1 exchanges.
//
// [Requester.Execute] acquires a connection for the target (an idle pooled
// one, or a fresh dial), fires [StreamListener.OnRequestHead], writes the
// request head and entity, reads the response head, fires
// [StreamListener.OnResponseHead] and returns a [Response] whose body reads
// lazily from the connection.
//
// The exchange completes when the body is read to EOF or closed. At that
// point keep-alive is decided: the request must not have asked for
// "Connection: close", the response must be self-delimiting and allow
// persistence (HTTP/1.1 unless "close", HTTP/1.0 only with "keep-alive"),
// and the body must have been drained without error. The listener receives
// [StreamListener.OnExchangeComplete] exactly once, then the connection is
// either parked in the pool or closed. Every failure after the connection
// was acquired closes it.
//
// Failures are reported as [*Error] and match [ErrConnection], [ErrTimeout],
// [ErrProtocol], [ErrWrite] or [ErrListener] with errors.Is. Nothing is
// retried here; see the runner package for retry and pacing.
package requester

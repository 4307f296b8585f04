// Package transport manages the connection to a counterpart endpoint.
//
// # Client
//
// Client owns one Endpoint and provides:
//
//   - priority delivery: a heap ordered by (priority desc, enqueue
//     time asc), drained by a background loop
//   - bounded retry: a failing message is attempted exactly
//     maxRetries+1 times (default 4) with linear backoff, then counted
//     as permanently failed
//   - bounded reconnect: Reconnect stops after maxReconnectAttempts
//     (default 5) with ErrReconnectLimit; only a fresh Connect resets
//   - heartbeats: emitted to the peer every heartbeatInterval
//     (default 30s)
//   - pending futures: SendAndWait blocks until a message whose
//     CorrelationID matches arrives, returning (nil, nil) on timeout
//
// # Endpoint
//
// Endpoint is deliberately minimal; no wire format is mandated. A gRPC
// stream, a websocket, or the in-process Pipe used by tests and the
// simulator all satisfy it.
package transport

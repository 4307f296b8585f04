// Package protocol implements typed inter-agent messaging.
//
// # Message Model
//
// Message is the envelope; its body is the sealed Payload union:
//
//   - TaskRequest / TaskResult: execute a capability and report back
//   - StatusUpdate: lifecycle state announcements
//   - Heartbeat: periodic liveness signal
//   - ErrorNotice: failures unrelated to a specific request
//   - CollaborationRequest / CollaborationResponse: multi-agent plans
//
// Dispatch is an exhaustive type switch over the union; adding a
// variant without handling it is a compile-visible hole rather than a
// silent runtime miss.
//
// # Correlation
//
// A response's CorrelationID carries the originating request's message
// id. Reply builds a correctly correlated envelope addressed back to
// the sender:
//
//	reply := msg.Reply(myID, protocol.TaskResult{Result: res})
//
// An empty ReceiverID means broadcast.
//
// Correlated results, collaboration responses, and per-sender liveness
// are kept in bounded tables (oldest entries evicted first); ResultFor
// consumes its entry on read.
//
// # Queues
//
// Each Protocol owns an inbound and an outbound FIFO queue drained by
// one worker each. Send and Receive never block: a full queue fails
// with ErrQueueFull, a stopped bus with ErrStopped.
//
// # Workflows
//
// ExecuteWorkflow runs multi-step collaboration plans either
// sequentially (honoring per-step DependsOn) or in parallel. The
// aggregate succeeds only when every step does.
package protocol

// ABOUTME: Inter-agent message envelope with a sealed payload union.
// ABOUTME: Payload variants replace runtime handler-table lookups with an exhaustive type switch.

package protocol

import (
	"time"

	"github.com/google/uuid"

	"github.com/meshwork-ai/meshwork/internal/task"
)

// MessageType identifies the payload variant carried by a Message.
type MessageType int

const (
	TypeTaskRequest MessageType = iota
	TypeTaskResult
	TypeStatusUpdate
	TypeHeartbeat
	TypeError
	TypeCollaborationRequest
	TypeCollaborationResponse
)

// String returns the snake_case name of the message type.
func (t MessageType) String() string {
	switch t {
	case TypeTaskRequest:
		return "task_request"
	case TypeTaskResult:
		return "task_result"
	case TypeStatusUpdate:
		return "status_update"
	case TypeHeartbeat:
		return "heartbeat"
	case TypeError:
		return "error"
	case TypeCollaborationRequest:
		return "collaboration_request"
	case TypeCollaborationResponse:
		return "collaboration_response"
	default:
		return "unknown"
	}
}

// Payload is the sealed union of message bodies. Exactly one concrete
// type exists per MessageType.
type Payload interface {
	isPayload()
	Type() MessageType
}

// TaskRequest asks the receiver to execute a capability.
type TaskRequest struct {
	Task *task.Task
}

// TaskResult carries the outcome of a TaskRequest back to the sender.
type TaskResult struct {
	Result *task.Result
}

// StatusUpdate announces a sender's lifecycle state.
type StatusUpdate struct {
	Status  string
	Details map[string]string
}

// Heartbeat is a periodic liveness signal.
type Heartbeat struct {
	SentAt time.Time
}

// ErrorNotice reports a failure unrelated to a specific request.
type ErrorNotice struct {
	Code    string
	Message string
}

// CollaborationRequest invites other agents into a multi-step plan.
type CollaborationRequest struct {
	RequestID    string
	CapabilityID string
	Description  string
	Input        map[string]any
}

// CollaborationResponse answers a CollaborationRequest.
type CollaborationResponse struct {
	RequestID string
	Accepted  bool
	Output    map[string]any
	Message   string
}

func (TaskRequest) isPayload()           {}
func (TaskResult) isPayload()            {}
func (StatusUpdate) isPayload()          {}
func (Heartbeat) isPayload()             {}
func (ErrorNotice) isPayload()           {}
func (CollaborationRequest) isPayload()  {}
func (CollaborationResponse) isPayload() {}

func (TaskRequest) Type() MessageType           { return TypeTaskRequest }
func (TaskResult) Type() MessageType            { return TypeTaskResult }
func (StatusUpdate) Type() MessageType          { return TypeStatusUpdate }
func (Heartbeat) Type() MessageType             { return TypeHeartbeat }
func (ErrorNotice) Type() MessageType           { return TypeError }
func (CollaborationRequest) Type() MessageType  { return TypeCollaborationRequest }
func (CollaborationResponse) Type() MessageType { return TypeCollaborationResponse }

// Message is the envelope exchanged between agents. An empty
// ReceiverID means broadcast. CorrelationID links a response to its
// originating request.
type Message struct {
	ID            string
	SenderID      string
	ReceiverID    string
	Payload       Payload
	CorrelationID string
	Priority      task.Priority
	Timestamp     time.Time
}

// Type returns the payload's message type.
func (m *Message) Type() MessageType {
	return m.Payload.Type()
}

// Broadcast reports whether the message is addressed to every agent.
func (m *Message) Broadcast() bool {
	return m.ReceiverID == ""
}

// NewMessage builds an envelope with a generated id and current
// timestamp.
func NewMessage(sender, receiver string, payload Payload, priority task.Priority) *Message {
	return &Message{
		ID:         uuid.New().String(),
		SenderID:   sender,
		ReceiverID: receiver,
		Payload:    payload,
		Priority:   priority,
		Timestamp:  time.Now(),
	}
}

// Reply builds a response envelope correlated to m, addressed back to
// its sender.
func (m *Message) Reply(sender string, payload Payload) *Message {
	r := NewMessage(sender, m.SenderID, payload, m.Priority)
	r.CorrelationID = m.ID
	return r
}

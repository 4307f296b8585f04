// ABOUTME: In-process message bus dispatching typed messages between agents.
// ABOUTME: Drains inbound/outbound queues with one worker each; executes task requests locally.

package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/task"
)

// ErrStopped is returned when enqueueing on a stopped bus.
var ErrStopped = errors.New("protocol is stopped")

// ErrQueueFull is returned when a bus queue is at capacity.
var ErrQueueFull = errors.New("message queue is full")

// defaultMaxTracked bounds each of the per-sender and per-request
// tracking tables. Oldest entries are evicted first.
const defaultMaxTracked = 256

// Executor runs a capability with the given input. The model-backend
// adapter behind it is opaque to the protocol.
type Executor interface {
	Execute(ctx context.Context, capabilityID string, input map[string]any) (map[string]any, error)
}

// Deliverer carries outbound messages to their receivers. The
// transport client implements this for cross-process delivery; tests
// loop messages straight back.
type Deliverer interface {
	Deliver(ctx context.Context, msg *Message) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, msg *Message) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Protocol is the communication endpoint for one agent. Both queues
// are plain FIFO; ordering across different receivers is not
// guaranteed.
type Protocol struct {
	agentID   string
	executor  Executor
	deliverer Deliverer
	logger    *slog.Logger

	inbound  chan *Message
	outbound chan *Message

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	collabs    map[string][]*CollaborationResponse
	results    map[string]*task.Result // task results keyed by correlation id
	heartbeats map[string]time.Time    // last heartbeat per sender
	statuses   map[string]string       // last reported status per sender

	// insertion order per table, for oldest-first eviction
	maxTracked  int
	collabOrder []string
	resultOrder []string
	hbOrder     []string
	statusOrder []string

	onError func(sender string, notice ErrorNotice)
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithQueueSize sets both queue capacities (default 128).
func WithQueueSize(n int) Option {
	return func(p *Protocol) {
		if n > 0 {
			p.inbound = make(chan *Message, n)
			p.outbound = make(chan *Message, n)
		}
	}
}

// WithMaxTracked bounds the result, collaboration, heartbeat, and
// status tables (default 256 entries each).
func WithMaxTracked(n int) Option {
	return func(p *Protocol) {
		if n > 0 {
			p.maxTracked = n
		}
	}
}

// WithErrorHandler registers a callback for ErrorNotice payloads.
func WithErrorHandler(fn func(sender string, notice ErrorNotice)) Option {
	return func(p *Protocol) { p.onError = fn }
}

// New creates a Protocol for the given agent id.
func New(agentID string, executor Executor, deliverer Deliverer, logger *slog.Logger, opts ...Option) *Protocol {
	p := &Protocol{
		agentID:    agentID,
		executor:   executor,
		deliverer:  deliverer,
		logger:     logger.With("component", "protocol", "agent_id", agentID),
		inbound:    make(chan *Message, 128),
		outbound:   make(chan *Message, 128),
		collabs:    make(map[string][]*CollaborationResponse),
		results:    make(map[string]*task.Result),
		heartbeats: make(map[string]time.Time),
		statuses:   make(map[string]string),
		maxTracked: defaultMaxTracked,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AgentID returns the id this protocol speaks for.
func (p *Protocol) AgentID() string {
	return p.agentID
}

// Start launches the two queue workers. Idempotent.
func (p *Protocol) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(2)
	go p.drainInbound(ctx)
	go p.drainOutbound(ctx)
}

// Stop halts both workers. In-flight dispatches finish; the stop is
// observed at the next queue receive. Idempotent.
func (p *Protocol) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Protocol) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Send enqueues an outbound message. Never blocks.
func (p *Protocol) Send(msg *Message) error {
	if !p.isRunning() {
		return ErrStopped
	}
	select {
	case p.outbound <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive enqueues an inbound message for dispatch. Never blocks.
func (p *Protocol) Receive(msg *Message) error {
	if !p.isRunning() {
		return ErrStopped
	}
	select {
	case p.inbound <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueSizes returns the inbound and outbound backlog.
func (p *Protocol) QueueSizes() (inbound, outbound int) {
	return len(p.inbound), len(p.outbound)
}

func (p *Protocol) drainOutbound(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.outbound:
			if err := p.deliverer.Deliver(ctx, msg); err != nil {
				p.logger.Warn("outbound delivery failed",
					"message_id", msg.ID,
					"type", msg.Type().String(),
					"receiver_id", msg.ReceiverID,
					"error", err,
				)
			}
		}
	}
}

func (p *Protocol) drainInbound(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.inbound:
			p.dispatch(ctx, msg)
		}
	}
}

// dispatch handles one inbound message. The switch is exhaustive over
// the sealed payload union.
func (p *Protocol) dispatch(ctx context.Context, msg *Message) {
	switch payload := msg.Payload.(type) {
	case TaskRequest:
		p.handleTaskRequest(ctx, msg, payload)

	case TaskResult:
		p.mu.Lock()
		if _, ok := p.results[msg.CorrelationID]; !ok {
			p.resultOrder = append(p.resultOrder, msg.CorrelationID)
		}
		p.results[msg.CorrelationID] = payload.Result
		p.resultOrder = evictOldest(p.resultOrder, p.results, p.maxTracked)
		p.mu.Unlock()

	case StatusUpdate:
		p.mu.Lock()
		if _, ok := p.statuses[msg.SenderID]; !ok {
			p.statusOrder = append(p.statusOrder, msg.SenderID)
		}
		p.statuses[msg.SenderID] = payload.Status
		p.statusOrder = evictOldest(p.statusOrder, p.statuses, p.maxTracked)
		p.mu.Unlock()

	case Heartbeat:
		p.mu.Lock()
		if _, ok := p.heartbeats[msg.SenderID]; !ok {
			p.hbOrder = append(p.hbOrder, msg.SenderID)
		}
		p.heartbeats[msg.SenderID] = payload.SentAt
		p.hbOrder = evictOldest(p.hbOrder, p.heartbeats, p.maxTracked)
		p.mu.Unlock()

	case ErrorNotice:
		p.logger.Warn("error notice received",
			"sender_id", msg.SenderID,
			"code", payload.Code,
			"message", payload.Message,
		)
		if p.onError != nil {
			p.onError(msg.SenderID, payload)
		}

	case CollaborationRequest:
		p.logger.Debug("collaboration request received",
			"sender_id", msg.SenderID,
			"request_id", payload.RequestID,
			"capability", payload.CapabilityID,
		)

	case CollaborationResponse:
		p.mu.Lock()
		if _, ok := p.collabs[payload.RequestID]; !ok {
			p.collabOrder = append(p.collabOrder, payload.RequestID)
		}
		p.collabs[payload.RequestID] = append(p.collabs[payload.RequestID], &payload)
		p.collabOrder = evictOldest(p.collabOrder, p.collabs, p.maxTracked)
		p.mu.Unlock()

	default:
		p.logger.Warn("unhandled message payload", "type", fmt.Sprintf("%T", msg.Payload))
	}
}

// handleTaskRequest executes the task locally and replies immediately
// with a TaskResult correlated to the request message id.
func (p *Protocol) handleTaskRequest(ctx context.Context, msg *Message, req TaskRequest) {
	t := req.Task

	execCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := p.executor.Execute(execCtx, t.CapabilityID, t.Input)
	elapsed := time.Since(start)

	result := &task.Result{
		TaskID:        t.ID,
		AgentID:       p.agentID,
		ExecutionTime: elapsed,
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
		result.Output = output
	}

	reply := msg.Reply(p.agentID, TaskResult{Result: result})
	if sendErr := p.Send(reply); sendErr != nil {
		p.logger.Warn("failed to enqueue task result",
			"task_id", t.ID,
			"error", sendErr,
		)
	}
}

// InitiateCollaboration broadcasts a collaboration request and returns
// its request id. Responses accumulate and are fetched by polling
// CollaborationResponses; no blocking wait is imposed here.
func (p *Protocol) InitiateCollaboration(req CollaborationRequest) (string, error) {
	msg := NewMessage(p.agentID, "", req, task.PriorityNormal)
	if req.RequestID == "" {
		req.RequestID = msg.ID
		msg.Payload = req
	}

	p.mu.Lock()
	if _, ok := p.collabs[req.RequestID]; !ok {
		p.collabs[req.RequestID] = nil
		p.collabOrder = append(p.collabOrder, req.RequestID)
		p.collabOrder = evictOldest(p.collabOrder, p.collabs, p.maxTracked)
	}
	p.mu.Unlock()

	if err := p.Send(msg); err != nil {
		return "", fmt.Errorf("broadcasting collaboration request: %w", err)
	}
	return req.RequestID, nil
}

// CollaborationResponses returns the responses received so far for a
// request.
func (p *Protocol) CollaborationResponses(requestID string) []*CollaborationResponse {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*CollaborationResponse, len(p.collabs[requestID]))
	copy(out, p.collabs[requestID])
	return out
}

// ResultFor returns the task result correlated to a request message
// id, if one has arrived. The entry is consumed: a second call for the
// same id reports no result.
func (p *Protocol) ResultFor(correlationID string) (*task.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.results[correlationID]
	if ok {
		delete(p.results, correlationID)
	}
	return r, ok
}

// LastHeartbeat returns when the given sender last reported liveness.
func (p *Protocol) LastHeartbeat(senderID string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.heartbeats[senderID]
	return t, ok
}

// evictOldest drops the oldest keys until the table is within bound.
// Consumed keys may linger in order until they age out; deleting them
// again is a no-op.
func evictOldest[V any](order []string, items map[string]V, max int) []string {
	for len(order) > max {
		delete(items, order[0])
		order = order[1:]
	}
	return order
}

// PeerStatus returns the last status reported by a sender.
func (p *Protocol) PeerStatus(senderID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.statuses[senderID]
	return s, ok
}

// ABOUTME: Transport client managing the connection to a counterpart endpoint.
// ABOUTME: Priority delivery with bounded retry, heartbeats, and pending-future correlation.

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/protocol"
	"github.com/meshwork-ai/meshwork/internal/task"
)

// Transport errors
var (
	// ErrNotConnected means a send was attempted while not connected.
	ErrNotConnected = errors.New("not connected")

	// ErrReconnectLimit means the bounded reconnect attempts are
	// exhausted; only a fresh Connect resets the client.
	ErrReconnectLimit = errors.New("reconnect attempt limit reached")
)

// Defaults for client tunables.
const (
	DefaultMaxRetries           = 3
	DefaultMaxReconnectAttempts = 5
	DefaultHeartbeatInterval    = 30 * time.Second
	defaultRetryBackoff         = 100 * time.Millisecond
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Stats is a read-only snapshot of connection counters.
type Stats struct {
	ConnectionAttempts    int
	SuccessfulConnections int
	MessagesSent          int
	MessagesReceived      int
	FailedMessages        int
	LastError             string
	LastConnectionTime    time.Time
}

// Endpoint is the placeholder contract for "send to a remote
// endpoint". No wire format is mandated; a gRPC stream, a websocket,
// or an in-process pipe all satisfy it.
type Endpoint interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *protocol.Message) error
	Close() error
}

// Handler receives inbound messages that do not complete a pending
// future. protocol.Protocol.Receive is the usual implementation.
type Handler func(ctx context.Context, msg *protocol.Message)

// Client owns the connection to one counterpart endpoint.
type Client struct {
	agentID  string
	peerID   string
	endpoint Endpoint
	handler  Handler
	logger   *slog.Logger

	mu                   sync.Mutex
	state                State
	stats                Stats
	reconnectAttempts    int
	maxRetries           int
	maxReconnectAttempts int
	heartbeatInterval    time.Duration
	retryBackoff         time.Duration
	pending              map[string]chan *protocol.Message

	queue *sendQueue

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the per-message delivery retry bound.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithMaxReconnectAttempts sets the reconnect bound.
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxReconnectAttempts = n
		}
	}
}

// WithHeartbeatInterval sets the heartbeat cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.heartbeatInterval = d
		}
	}
}

// WithRetryBackoff sets the base delay between delivery retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryBackoff = d
		}
	}
}

// NewClient creates a Client speaking for agentID toward the
// well-known counterpart peerID.
func NewClient(agentID, peerID string, endpoint Endpoint, handler Handler, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		agentID:              agentID,
		peerID:               peerID,
		endpoint:             endpoint,
		handler:              handler,
		logger:               logger.With("component", "transport", "agent_id", agentID),
		state:                StateDisconnected,
		maxRetries:           DefaultMaxRetries,
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		heartbeatInterval:    DefaultHeartbeatInterval,
		retryBackoff:         defaultRetryBackoff,
		pending:              make(map[string]chan *protocol.Message),
		queue:                newSendQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the connection counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// QueueSize returns the outbound backlog.
func (c *Client) QueueSize() int {
	return c.queue.size()
}

// Connect establishes the endpoint connection. A fresh Connect is the
// external reset: it is permitted from any state and zeroes the
// reconnect counter on success. There is no automatic retry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateConnecting
	c.stats.ConnectionAttempts++
	c.mu.Unlock()

	err := c.endpoint.Connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateError
		c.stats.LastError = err.Error()
		return fmt.Errorf("connecting endpoint: %w", err)
	}

	c.state = StateConnected
	c.stats.SuccessfulConnections++
	c.stats.LastConnectionTime = time.Now()
	c.reconnectAttempts = 0
	c.logger.Info("connected", "peer_id", c.peerID)
	return nil
}

// Reconnect retries the connection, bounded by the configured attempt
// limit. Past the limit the client stays in StateError until a fresh
// Connect.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.reconnectAttempts >= c.maxReconnectAttempts {
		c.state = StateError
		c.mu.Unlock()
		return ErrReconnectLimit
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.mu.Unlock()

	c.logger.Debug("reconnecting", "attempt", attempt, "max", c.maxReconnectAttempts)
	return c.Connect(ctx)
}

// Close disconnects the endpoint and returns to StateDisconnected.
func (c *Client) Close() error {
	err := c.endpoint.Close()

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	return err
}

// Start launches the delivery and heartbeat loops. Idempotent.
func (c *Client) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}
	c.running = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(2)
	go c.deliveryLoop(ctx)
	go c.heartbeatLoop(ctx)
}

// Stop halts both loops; the in-flight delivery finishes. Idempotent.
func (c *Client) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	c.wg.Wait()
}

// Send enqueues a message for priority delivery. Fails with
// ErrNotConnected unless the client is connected; nothing is queued on
// failure.
func (c *Client) Send(msg *protocol.Message) error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	c.queue.push(msg)
	return nil
}

// SendAndWait sends a message and waits for the response correlated to
// its id. Returns (nil, nil) on timeout. The pending entry is removed
// on every path.
func (c *Client) SendAndWait(ctx context.Context, msg *protocol.Message, timeout time.Duration) (*protocol.Message, error) {
	respCh := make(chan *protocol.Message, 1)

	c.mu.Lock()
	c.pending[msg.ID] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	if err := c.Send(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleMessage is the inbound path, called by the endpoint. A message
// whose correlation id matches a pending future completes it;
// everything else is dispatched to the handler.
func (c *Client) HandleMessage(ctx context.Context, msg *protocol.Message) {
	c.mu.Lock()
	c.stats.MessagesReceived++
	var respCh chan *protocol.Message
	if msg.CorrelationID != "" {
		if ch, ok := c.pending[msg.CorrelationID]; ok {
			respCh = ch
			delete(c.pending, msg.CorrelationID)
		}
	}
	c.mu.Unlock()

	if respCh != nil {
		respCh <- msg
		return
	}

	if c.handler != nil {
		c.handler(ctx, msg)
	}
}

// deliveryLoop drains the priority queue, retrying failed deliveries
// up to the retry bound. A message that keeps failing is attempted
// exactly maxRetries+1 times, then counted as permanently failed.
func (c *Client) deliveryLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.queue.notify:
		}

		for {
			item := c.queue.pop()
			if item == nil {
				break
			}
			c.deliver(ctx, item)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

func (c *Client) deliver(ctx context.Context, item *queueItem) {
	err := c.endpoint.Send(ctx, item.msg)
	if err == nil {
		c.mu.Lock()
		c.stats.MessagesSent++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.stats.LastError = err.Error()
	c.mu.Unlock()

	if item.retryCount < c.maxRetries {
		item.retryCount++
		c.logger.Debug("delivery failed, retrying",
			"message_id", item.msg.ID,
			"retry", item.retryCount,
			"error", err,
		)

		backoff := c.retryBackoff * time.Duration(item.retryCount)
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				// Re-enqueue so the message is not silently dropped.
				c.queue.pushItem(item)
				return
			case <-timer.C:
			}
		}
		c.queue.pushItem(item)
		return
	}

	c.mu.Lock()
	c.stats.FailedMessages++
	c.mu.Unlock()
	c.logger.Warn("message permanently failed",
		"message_id", item.msg.ID,
		"type", item.msg.Type().String(),
		"attempts", item.retryCount+1,
		"error", err,
	)
}

// heartbeatLoop emits a heartbeat to the counterpart on a fixed
// interval. Failures are recorded, never escalated here.
func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := protocol.NewMessage(c.agentID, c.peerID,
				protocol.Heartbeat{SentAt: time.Now()}, task.PriorityNormal)
			if err := c.Send(hb); err != nil {
				c.logger.Debug("heartbeat skipped", "error", err)
			}
		}
	}
}

// ABOUTME: In-process Endpoint pair for tests and the fleet simulator.
// ABOUTME: Messages sent on one side are handed to the receive function bound on the other.

package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/meshwork-ai/meshwork/internal/protocol"
)

// ErrPipeClosed means the pipe endpoint is closed or never connected.
var ErrPipeClosed = errors.New("pipe endpoint is closed")

// PipeEndpoint is one side of an in-process transport pipe.
type PipeEndpoint struct {
	mu        sync.Mutex
	peer      *PipeEndpoint
	receive   func(ctx context.Context, msg *protocol.Message)
	connected bool
}

// NewPipe creates two connected endpoints. Messages sent on one side
// arrive at the receive function bound on the other.
func NewPipe() (*PipeEndpoint, *PipeEndpoint) {
	a := &PipeEndpoint{}
	b := &PipeEndpoint{}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind sets the function invoked with messages arriving on this side.
// Typically Client.HandleMessage.
func (p *PipeEndpoint) Bind(receive func(ctx context.Context, msg *protocol.Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receive = receive
}

// Connect marks the endpoint as connected.
func (p *PipeEndpoint) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.peer == nil {
		return ErrPipeClosed
	}
	p.connected = true
	return nil
}

// Send hands the message to the peer's bound receive function.
func (p *PipeEndpoint) Send(ctx context.Context, msg *protocol.Message) error {
	p.mu.Lock()
	peer := p.peer
	connected := p.connected
	p.mu.Unlock()

	if !connected || peer == nil {
		return ErrPipeClosed
	}

	peer.mu.Lock()
	receive := peer.receive
	peer.mu.Unlock()

	if receive == nil {
		return ErrPipeClosed
	}
	receive(ctx, msg)
	return nil
}

// Close disconnects this side of the pipe.
func (p *PipeEndpoint) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// ABOUTME: Placeholder executor and registry-backed lifecycle controller for the daemon.
// ABOUTME: Real model-backend adapters plug in behind the same interfaces.

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/meshwork-ai/meshwork/internal/registry"
)

// echoExecutor stands in for the model-backend adapters, which are
// external to this core. It echoes the input back under the
// capability's name.
type echoExecutor struct{}

func newEchoExecutor() *echoExecutor {
	return &echoExecutor{}
}

func (e *echoExecutor) Execute(ctx context.Context, capabilityID string, input map[string]any) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return map[string]any{
		"capability": capabilityID,
		"echo":       input,
	}, nil
}

// registryController starts and restarts agents by flipping registry
// status. A production controller would supervise real processes.
type registryController struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func (c *registryController) StartAgent(ctx context.Context, agentID string) error {
	if err := c.registry.SetStatus(agentID, registry.StatusStarting); err != nil {
		return err
	}
	return c.registry.SetStatus(agentID, registry.StatusRunning)
}

func (c *registryController) RestartAgent(ctx context.Context, agentID string) error {
	if err := c.registry.SetStatus(agentID, registry.StatusStopping); err != nil {
		return err
	}
	return c.StartAgent(ctx, agentID)
}

// registryProbe reports instant responses for running agents; real
// deployments probe the agent process instead.
func registryProbe(reg *registry.Registry) func(ctx context.Context, agent *registry.Agent) (time.Duration, error) {
	return func(ctx context.Context, agent *registry.Agent) (time.Duration, error) {
		start := time.Now()
		_, _ = reg.Get(agent.ID)
		return time.Since(start), nil
	}
}

// ABOUTME: Entry point for the meshworkd orchestration daemon
// ABOUTME: Composition root wiring registry, router, allocator, protocol, transport, and lifecycle

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/meshwork-ai/meshwork/internal/alloc"
	"github.com/meshwork-ai/meshwork/internal/config"
	"github.com/meshwork-ai/meshwork/internal/lifecycle"
	"github.com/meshwork-ai/meshwork/internal/perf"
	"github.com/meshwork-ai/meshwork/internal/protocol"
	"github.com/meshwork-ai/meshwork/internal/registry"
	"github.com/meshwork-ai/meshwork/internal/router"
	"github.com/meshwork-ai/meshwork/internal/store"
	"github.com/meshwork-ai/meshwork/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                        _                       _
  _ __ ___   ___  ___| |____      _____  _ __| | __
 | '_ ' _ \ / _ \/ __| '_ \ \ /\ / / _ \| '__| |/ /
 | | | | | |  __/\__ \ | | \ V  V / (_) | |  |   <
 |_| |_| |_|\___||___/_| |_|\_/\_/ \___/|_|  |_|\_\
`

// getConfigPath returns the path to the orchestrator config file.
// Priority: MESHWORK_CONFIG env var > XDG_CONFIG_HOME/meshwork/meshwork.yaml > ~/.config/meshwork/meshwork.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MESHWORK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "meshwork.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "meshwork", "meshwork.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: meshworkd <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the orchestration core")
		fmt.Println("  simulate  Run a simulated fleet through the scheduler")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "simulate":
		err = runSimulate(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Agents:  %d\n", len(cfg.Agents))
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("History: %s\n", cfg.Database.Path)
	}
	fmt.Println()

	core, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}
	defer core.store.Close()

	core.start(ctx)
	defer core.stop()

	logger.Info("orchestration core running", "agents", len(cfg.Agents))
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// core holds the wired orchestration components. At most one instance
// exists per process, owned here rather than behind package globals.
type core struct {
	registry  *registry.Registry
	tracker   *perf.Tracker
	store     store.Store
	router    *router.Router
	allocator *alloc.Allocator
	protocol  *protocol.Protocol
	client    *transport.Client
	lifecycle *lifecycle.Manager
	executor  router.Executor
}

func buildCore(cfg *config.Config, logger *slog.Logger) (*core, error) {
	var st store.Store
	if cfg.Database.Path != "" {
		sqlite, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		st = sqlite
	} else {
		st = store.NewMemoryStore()
	}

	reg := registry.New()
	for _, a := range cfg.Agents {
		agent := &registry.Agent{
			ID:                 a.ID,
			Name:               a.Name,
			Status:             registry.StatusStopped,
			Capabilities:       a.Capabilities,
			MaxConcurrentTasks: a.MaxConcurrentTasks,
			Priority:           a.Priority,
			Tier:               a.Tier,
			BaseCost:           a.BaseCost,
			AutoStart:          a.AutoStart,
		}
		if err := reg.Register(agent); err != nil {
			return nil, fmt.Errorf("registering agent %s: %w", a.ID, err)
		}
	}

	tracker := perf.NewTracker()
	executor := newEchoExecutor()

	var routerOpts []router.Option
	if cfg.Router.QueueSize > 0 {
		routerOpts = append(routerOpts, router.WithQueueSize(cfg.Router.QueueSize))
	}
	rt := router.New(reg, tracker, executor, logger, routerOpts...)
	if s, ok := parseRouterStrategy(cfg.Router.Strategy); ok {
		rt.SetStrategy(s)
	}

	var allocOpts []alloc.Option
	if cfg.Allocator.MaxLoad > 0 {
		allocOpts = append(allocOpts, alloc.WithMaxLoad(cfg.Allocator.MaxLoad))
	}
	if cfg.Allocator.MinSuccessRate > 0 {
		allocOpts = append(allocOpts, alloc.WithMinSuccessRate(cfg.Allocator.MinSuccessRate))
	}
	if s, ok := parseAllocStrategy(cfg.Allocator.Strategy); ok {
		allocOpts = append(allocOpts, alloc.WithStrategy(s))
	}
	al := alloc.New(reg, tracker, st, logger, allocOpts...)

	// Transport runs over an in-process pipe until a real endpoint is
	// attached. The far side acknowledges heartbeats and absorbs
	// everything else.
	near, far := transport.NewPipe()
	peerID := cfg.Transport.PeerID
	if peerID == "" {
		peerID = "meshwork-hub"
	}

	proto := protocol.New("meshworkd", executor, protocol.DelivererFunc(
		func(ctx context.Context, msg *protocol.Message) error {
			return far.Send(ctx, msg)
		}), logger)

	var clientOpts []transport.Option
	if cfg.Transport.MaxRetries > 0 {
		clientOpts = append(clientOpts, transport.WithMaxRetries(cfg.Transport.MaxRetries))
	}
	if cfg.Transport.MaxReconnectAttempts > 0 {
		clientOpts = append(clientOpts, transport.WithMaxReconnectAttempts(cfg.Transport.MaxReconnectAttempts))
	}
	if cfg.Transport.HeartbeatInterval > 0 {
		clientOpts = append(clientOpts, transport.WithHeartbeatInterval(cfg.Transport.HeartbeatInterval))
	}
	if cfg.Transport.RetryBackoff > 0 {
		clientOpts = append(clientOpts, transport.WithRetryBackoff(cfg.Transport.RetryBackoff))
	}
	client := transport.NewClient("meshworkd", peerID, near,
		func(ctx context.Context, msg *protocol.Message) {
			if err := proto.Receive(msg); err != nil {
				logger.Warn("inbound message dropped", "error", err)
			}
		}, logger, clientOpts...)
	near.Bind(client.HandleMessage)
	far.Bind(func(ctx context.Context, msg *protocol.Message) {
		if _, ok := msg.Payload.(protocol.Heartbeat); ok {
			_ = far.Send(ctx, msg.Reply(peerID, protocol.Heartbeat{SentAt: time.Now()}))
		}
	})
	if err := far.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("connecting loopback peer: %w", err)
	}

	controller := &registryController{registry: reg, logger: logger}
	checker := lifecycle.NewHealthChecker(registryProbe(reg),
		cfg.Lifecycle.WarningThreshold, cfg.Lifecycle.CriticalThreshold)
	monitor := lifecycle.NewResourceMonitor(lifecycle.RuntimeSampler(), cfg.Lifecycle.MaxResourceSamples)
	starter := lifecycle.NewAutoStarter(controller, logger)
	starter.SetEnabled(cfg.Lifecycle.AutoStart)
	recovery := lifecycle.NewFaultRecovery(controller, cfg.Lifecycle.MaxRestartAttempts, logger)

	var lcOpts []lifecycle.Option
	if cfg.Lifecycle.CheckInterval > 0 {
		lcOpts = append(lcOpts, lifecycle.WithCheckInterval(cfg.Lifecycle.CheckInterval))
	}
	if cfg.Lifecycle.HealthInterval > 0 {
		lcOpts = append(lcOpts, lifecycle.WithHealthInterval(cfg.Lifecycle.HealthInterval))
	}
	lm := lifecycle.NewManager(reg, checker, monitor, starter, recovery, logger, lcOpts...)

	return &core{
		registry:  reg,
		tracker:   tracker,
		store:     st,
		router:    rt,
		allocator: al,
		protocol:  proto,
		client:    client,
		lifecycle: lm,
		executor:  executor,
	}, nil
}

func (c *core) start(ctx context.Context) {
	_ = c.client.Connect(ctx)
	c.router.Start(ctx)
	c.protocol.Start(ctx)
	c.client.Start(ctx)
	c.lifecycle.Start(ctx)
}

func (c *core) stop() {
	c.lifecycle.Stop()
	c.client.Stop()
	c.protocol.Stop()
	c.router.Stop()
}

func parseRouterStrategy(s string) (router.Strategy, bool) {
	switch s {
	case "best_match":
		return router.StrategyBestMatch, true
	case "fastest_response":
		return router.StrategyFastestResponse, true
	case "load_balanced":
		return router.StrategyLoadBalanced, true
	default:
		return 0, false
	}
}

func parseAllocStrategy(s string) (alloc.Strategy, bool) {
	switch s {
	case "best_match":
		return alloc.StrategyBestMatch, true
	case "fastest_response":
		return alloc.StrategyFastestResponse, true
	case "lowest_cost":
		return alloc.StrategyLowestCost, true
	case "round_robin":
		return alloc.StrategyRoundRobin, true
	case "load_balanced":
		return alloc.StrategyLoadBalanced, true
	default:
		return 0, false
	}
}

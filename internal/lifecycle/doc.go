// Package lifecycle supervises registered agents.
//
// # Components
//
//   - HealthChecker: classifies each agent HEALTHY/WARNING/CRITICAL/
//     UNKNOWN from its status and a pluggable latency probe
//   - ResourceMonitor: bounded per-agent usage history with windowed
//     trend averages
//   - AutoStarter: sweeps stopped agents configured for auto-start
//   - FaultRecovery: restarts critical agents within a bounded budget
//   - Manager: drives the above on two fixed cadences
//
// # Supervision Cycles
//
// The Manager runs a check cycle (resource sampling plus auto-start
// sweep, default 30s) and a health cycle (default 60s). A WARNING is
// logged only; restarting on warnings would turn transient slowness
// into restart storms. A CRITICAL agent is restarted through
// FaultRecovery until its per-agent budget (default 3 attempts) is
// exhausted, after which it stays down until ResetRestartAttempts.
//
// # Probes and Samplers
//
// Both measurement points are pluggable. RuntimeSampler reports the
// orchestrator process's own memory; production deployments supply a
// collector that reaches the agent processes.
package lifecycle

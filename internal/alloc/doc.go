// Package alloc performs gated multi-factor agent selection.
//
// # Allocation Pipeline
//
// Allocate filters candidates in order:
//
//  1. Running agents declaring the capability (else ErrNoAvailableAgent)
//  2. Agents under the load ceiling, default 10 (else ErrCapacityExceeded)
//  3. For URGENT tasks only, agents whose recorded success rate meets
//     the reliability bar, default 0.7 (else ErrReliabilityGate)
//
// The survivor set is ranked by the configured strategy: best_match,
// fastest_response, lowest_cost, round_robin, or load_balanced.
//
// # Audit Trail
//
// Every successful allocation is appended to the store with its score,
// strategy, estimated response time (the pair's EMA, or 1s unmeasured),
// and estimated cost (tier cost times the task's complexity factor).
//
// The allocator tracks its own load counters; callers release load
// with UpdateLoad(agentID, -1) when execution completes.
package alloc

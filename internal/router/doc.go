// Package router dispatches capability-tagged tasks to running agents.
//
// # Overview
//
// The Router is the synchronous routing core: given a task, it filters
// the registry to running agents declaring the task's capability and
// ranks them under the active strategy. Submit feeds a background
// dispatch worker for fire-and-forget execution.
//
// # Strategies
//
//   - best_match: weighted composite of capability, performance, load,
//     and priority scores (the default)
//   - fastest_response: lowest recorded average response time;
//     unmeasured agents rank last
//   - load_balanced: fewest concurrent tasks
//
// The composite weights are fixed:
//
//	score = 0.4*capability + 0.3*performance + 0.2*load + 0.1*priority
//
// An (agent, capability) pair with no recorded history scores a neutral
// 0.5 on the performance factor.
//
// # Execution
//
// Execute never returns an error across the scheduling boundary: a
// routing failure or executor error comes back as a failed task.Result.
// Every execution, successful or not, is recorded in the performance
// tracker so the next routing decision sees it.
//
// # Thread Safety
//
// Router is safe for concurrent use. Strategy changes take effect on
// the next routing decision.
package router

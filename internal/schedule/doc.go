// Package schedule computes a recommended execution order for a list of
// tasks that depend on each other by title.
//
// A call builds a fresh dependency graph, sorts it with Kahn's algorithm and
// evaluates the result. Nothing is shared between calls, so a Scheduler can
// be used from any number of goroutines.
//
// The outcome is returned as a value rather than an error so callers can map
// each kind to their own transport:
//
//	out := schedule.New().Schedule(ctx, specs)
//	switch out.Kind {
//	case schedule.KindSuccess:
//	    use(out.Order)
//	case schedule.KindCycleDetected:
//	    ...
//	}
//
// Dependencies that name no declared task become ghost nodes. How they are
// treated is selected with a GhostPolicy; the default compares the sorted
// length with the number of declared tasks, so any ghost makes the request
// fail as a cycle.
package schedule

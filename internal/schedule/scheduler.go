package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/caesarsage/mini-pm/internal/dag"
	"github.com/caesarsage/mini-pm/internal/logger"
	"github.com/caesarsage/mini-pm/internal/task"
)

const tracerName = "minipm.schedule"

// Observer receives one call per Schedule invocation.
type Observer interface {
	ObserveSchedule(kind Kind, nodes int, elapsed time.Duration)
}

type Option func(*Scheduler)

func WithGhostPolicy(p GhostPolicy) Option {
	return func(s *Scheduler) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// Scheduler holds configuration only; it keeps no state between calls.
type Scheduler struct {
	policy   GhostPolicy
	observer Observer
	tracer   trace.Tracer
}

// graphSize is what one run built, reported on the span and to the
// observer. It is zero when the input was rejected before building.
type graphSize struct {
	nodes int
	edges int
}

// New creates a scheduler using GhostTaskCount unless overridden.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{policy: GhostTaskCount, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Policy() GhostPolicy {
	return s.policy
}

// Schedule computes the recommended order for specs. ctx carries the
// logger and trace span; the computation itself never blocks.
func (s *Scheduler) Schedule(ctx context.Context, specs []task.Spec) Outcome {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "schedule.Schedule",
		trace.WithAttributes(
			attribute.Int("schedule.tasks", len(specs)),
			attribute.String("schedule.ghost_policy", string(s.policy)),
		))
	defer span.End()

	out, size := s.run(specs)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("schedule.outcome", string(out.Kind)),
		attribute.Int("schedule.nodes", size.nodes),
		attribute.Int("schedule.edges", size.edges),
	)

	log := logger.FromContext(ctx)
	if out.OK() {
		log.Debug("schedule computed", "tasks", len(specs), "nodes", size.nodes, "edges", size.edges, "elapsed", elapsed)
	} else {
		span.SetStatus(codes.Error, out.Message)
		log.Info("schedule rejected", "kind", out.Kind, "reason", out.Message, "tasks", len(specs))
	}

	if s.observer != nil {
		s.observer.ObserveSchedule(out.Kind, size.nodes, elapsed)
	}
	return out
}

func (s *Scheduler) run(specs []task.Spec) (Outcome, graphSize) {
	g, err := dag.Build(specs)
	if err != nil {
		return fromBuildError(err), graphSize{}
	}
	size := graphSize{nodes: g.NodeCount(), edges: g.EdgeCount()}

	if s.policy == GhostReject {
		if ghosts := g.Ghosts(); len(ghosts) > 0 {
			return failure(KindUnknownDependency, MsgUnknownDep+": "+strings.Join(ghosts, ", ")), size
		}
	}

	out := Evaluate(g.TopologicalSort(), s.policy.expected(g))
	if out.Kind == KindCycleDetected {
		out = withCycle(out, g.FindCycle())
	}
	return out, size
}

func fromBuildError(err error) Outcome {
	var ge *dag.GraphError
	msg := err.Error()
	if errors.As(err, &ge) {
		msg = ge.Msg
	}

	switch {
	case errors.Is(err, dag.ErrDuplicateTitle):
		return failure(KindDuplicateTitle, MsgDuplicateTitle+": "+msg)
	default:
		return failure(KindInvalidInput, msg)
	}
}


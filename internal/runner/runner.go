// Package runner executes flow documents against registered components.
package runner

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/observability"
	appErrors "channelflow-backend/pkg/errors"
)

// RunOptions carries per-run input overrides, keyed node id then input name.
type RunOptions struct {
	Tweaks map[string]map[string]any
}

// NodeResult is one node's execution outcome.
type NodeResult struct {
	Type     string            `json:"type"`
	Outputs  component.Outputs `json:"outputs"`
	Duration time.Duration     `json:"duration"`
}

// Result is one flow execution. Outputs holds sink nodes only; Nodes holds
// every executed node for debugging.
type Result struct {
	RunID      string                       `json:"run_id"`
	FlowID     string                       `json:"flow_id"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Nodes      map[string]NodeResult        `json:"nodes"`
	Outputs    map[string]component.Outputs `json:"outputs"`
}

// Recorder persists run records. The run repository satisfies this.
type Recorder interface {
	SaveRun(ctx context.Context, record *domain.RunRecord) error
}

// Runner executes documents node by node in topological order. A node error
// aborts the run; there is no retry or branching.
type Runner struct {
	registry *component.Registry
	logger   *zap.Logger
	metrics  *observability.Collector
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures optional runner collaborators.
type Option func(*Runner)

// WithMetrics records flow-run counts and node durations on the collector.
func WithMetrics(metrics *observability.Collector) Option {
	return func(r *Runner) { r.metrics = metrics }
}

// WithRecorder persists a run record after every execution.
func WithRecorder(recorder Recorder) Option {
	return func(r *Runner) { r.recorder = recorder }
}

// New creates a runner over the component registry.
func New(registry *component.Registry, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		logger:   logger,
		tracer:   otel.Tracer("channelflow-backend/runner"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the document once and returns the sink outputs.
func (r *Runner) Run(ctx context.Context, doc *flow.Document, opts RunOptions) (*Result, error) {
	if err := doc.Validate(r.registry); err != nil {
		return nil, err
	}
	order, err := doc.TopoOrder()
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     ulid.Make().String(),
		FlowID:    doc.ID,
		StartedAt: r.now().UTC(),
		Nodes:     make(map[string]NodeResult, len(order)),
		Outputs:   make(map[string]component.Outputs),
	}
	r.logger.Info("starting flow run",
		zap.String("flow_id", doc.ID),
		zap.String("run_id", res.RunID),
		zap.Int("nodes", len(order)))

	outputs := make(map[string]component.Outputs, len(order))
	var runErr error
	for _, nodeID := range order {
		node, _ := doc.Node(nodeID)
		comp, _ := r.registry.Get(node.Type)

		out, duration, err := r.runNode(ctx, doc, node, comp, bindInputs(doc, node, opts, outputs))
		if r.metrics != nil {
			r.metrics.NodeDuration.WithLabelValues(doc.ID, node.Type).Observe(duration.Seconds())
		}
		if err != nil {
			runErr = appErrors.Wrapf(err, "node %s failed", node.ID)
			break
		}

		outputs[node.ID] = out
		res.Nodes[node.ID] = NodeResult{Type: node.Type, Outputs: out, Duration: duration}
	}

	res.FinishedAt = r.now().UTC()
	for nodeID, out := range outputs {
		if doc.IsSink(nodeID) {
			res.Outputs[nodeID] = out
		}
	}

	status := domain.RunSucceeded
	if runErr != nil {
		status = domain.RunFailed
	}
	if r.metrics != nil {
		r.metrics.FlowRuns.WithLabelValues(doc.ID, status).Inc()
	}
	r.record(ctx, res, status, runErr)

	if runErr != nil {
		r.logger.Error("flow run failed",
			zap.String("flow_id", doc.ID),
			zap.String("run_id", res.RunID),
			zap.Error(runErr))
		return nil, runErr
	}
	r.logger.Info("flow run finished",
		zap.String("flow_id", doc.ID),
		zap.String("run_id", res.RunID),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

func (r *Runner) runNode(ctx context.Context, doc *flow.Document, node *flow.Node, comp component.Component, in component.Inputs) (component.Outputs, time.Duration, error) {
	ctx, span := r.tracer.Start(ctx, "flow.run_node",
		trace.WithAttributes(
			attribute.String("flow.id", doc.ID),
			attribute.String("flow.node_id", node.ID),
			attribute.String("flow.node_type", node.Type),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := comp.Run(ctx, in)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
	}
	return out, duration, err
}

// bindInputs assembles one node's inputs. Node data seeds the bag, tweaks
// override it, and inbound edges override both. An upstream output that was
// never produced binds nothing; a produced nil does bind.
func bindInputs(doc *flow.Document, node *flow.Node, opts RunOptions, outputs map[string]component.Outputs) component.Inputs {
	in := make(component.Inputs, len(node.Data))
	for k, v := range node.Data {
		in[k] = v
	}
	for k, v := range opts.Tweaks[node.ID] {
		in[k] = v
	}
	for _, edge := range doc.Inbound(node.ID) {
		up, ok := outputs[edge.Source]
		if !ok {
			continue
		}
		val, ok := up[edge.SourceHandle]
		if !ok {
			continue
		}
		in[edge.TargetHandle] = val
	}
	return in
}

func (r *Runner) record(ctx context.Context, res *Result, status string, runErr error) {
	if r.recorder == nil {
		return
	}

	rec := &domain.RunRecord{
		FlowID:     res.FlowID,
		RunID:      res.RunID,
		Status:     status,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		DurationMS: res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		Outputs:    outputsMap(res.Outputs),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := r.recorder.SaveRun(ctx, rec); err != nil {
		r.logger.Warn("failed to record flow run",
			zap.String("flow_id", res.FlowID),
			zap.String("run_id", res.RunID),
			zap.Error(err))
	}
}

func outputsMap(outputs map[string]component.Outputs) map[string]any {
	if len(outputs) == 0 {
		return nil
	}
	out := make(map[string]any, len(outputs))
	for nodeID, o := range outputs {
		out[nodeID] = map[string]any(o)
	}
	return out
}

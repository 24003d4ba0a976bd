package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the Manager for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay scheduling.
type Observer interface {
	// OnFlowStart is called once when a Flow is first submitted to a
	// Manager, before any Job has run.
	OnFlowStart(ctx context.Context, flowUUID string)

	// OnFlowCompleted is called when a run ends without a scheduler-level
	// error: no Job is left ready, or a stop_jobflow directive halted the
	// run. Failed Jobs do not prevent it.
	OnFlowCompleted(ctx context.Context, flowUUID string)

	// OnFlowFailed is called when the Manager stops on a scheduler-level
	// error: graph construction failed, or the graph became unresolvable.
	// A failing Job is recorded in the Report and does not trigger it.
	OnFlowFailed(ctx context.Context, flowUUID string, err error)

	// OnJobStart is called immediately before a Job runs, before its
	// arguments are resolved.
	OnJobStart(ctx context.Context, job *Job)

	// OnJobCompleted is called after a Job's function returns, for both
	// successes and failures (err != nil).
	OnJobCompleted(ctx context.Context, job *Job, resp *Response, err error, duration time.Duration)

	// OnDirectiveApplied is called once per dynamic directive (kind is
	// "detour", "addition", "replace", "self_replace" or "stop_children")
	// the scheduler applies after persisting a Job's Response.
	OnDirectiveApplied(ctx context.Context, job *Job, kind string, insertedUUIDs []string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnFlowStart(ctx context.Context, flowUUID string)                {}
func (NoopObserver) OnFlowCompleted(ctx context.Context, flowUUID string)            {}
func (NoopObserver) OnFlowFailed(ctx context.Context, flowUUID string, err error)    {}
func (NoopObserver) OnJobStart(ctx context.Context, job *Job)                        {}
func (NoopObserver) OnJobCompleted(ctx context.Context, job *Job, resp *Response, err error, d time.Duration) {
}
func (NoopObserver) OnDirectiveApplied(ctx context.Context, job *Job, kind string, inserted []string) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnFlowStart(ctx context.Context, flowUUID string) {
	for _, o := range c.observers {
		o.OnFlowStart(ctx, flowUUID)
	}
}

func (c *CompositeObserver) OnFlowCompleted(ctx context.Context, flowUUID string) {
	for _, o := range c.observers {
		o.OnFlowCompleted(ctx, flowUUID)
	}
}

func (c *CompositeObserver) OnFlowFailed(ctx context.Context, flowUUID string, err error) {
	for _, o := range c.observers {
		o.OnFlowFailed(ctx, flowUUID, err)
	}
}

func (c *CompositeObserver) OnJobStart(ctx context.Context, job *Job) {
	for _, o := range c.observers {
		o.OnJobStart(ctx, job)
	}
}

func (c *CompositeObserver) OnJobCompleted(ctx context.Context, job *Job, resp *Response, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnJobCompleted(ctx, job, resp, err, d)
	}
}

func (c *CompositeObserver) OnDirectiveApplied(ctx context.Context, job *Job, kind string, inserted []string) {
	for _, o := range c.observers {
		o.OnDirectiveApplied(ctx, job, kind, inserted)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs Flow / Job lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnFlowStart(ctx context.Context, flowUUID string) {
	o.Logger.InfoContext(ctx, "flow_start", slog.String("flow", flowUUID))
}

func (o *LoggingObserver) OnFlowCompleted(ctx context.Context, flowUUID string) {
	o.Logger.InfoContext(ctx, "flow_completed", slog.String("flow", flowUUID))
}

func (o *LoggingObserver) OnFlowFailed(ctx context.Context, flowUUID string, err error) {
	o.Logger.ErrorContext(ctx, "flow_failed", slog.String("flow", flowUUID), slog.Any("error", err))
}

func (o *LoggingObserver) OnJobStart(ctx context.Context, job *Job) {
	o.Logger.DebugContext(ctx, "job_start",
		slog.String("job", job.UUID),
		slog.Int("index", job.Index),
		slog.String("name", job.Name),
		slog.String("function", job.Function),
	)
}

func (o *LoggingObserver) OnJobCompleted(ctx context.Context, job *Job, resp *Response, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "job_completed",
		slog.String("job", job.UUID),
		slog.Int("index", job.Index),
		slog.String("name", job.Name),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnDirectiveApplied(ctx context.Context, job *Job, kind string, inserted []string) {
	o.Logger.InfoContext(ctx, "directive_applied",
		slog.String("job", job.UUID),
		slog.String("kind", kind),
		slog.Any("inserted", inserted),
	)
}

// BasicMetrics collects simple counters and aggregate job durations. It
// implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	flowsStarted   atomic.Int64
	flowsCompleted atomic.Int64
	flowsFailed    atomic.Int64
	jobsCompleted  atomic.Int64
	jobsFailed     atomic.Int64
	directives     atomic.Int64
	totalDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	FlowsStarted   int64
	FlowsCompleted int64
	FlowsFailed    int64
	PendingFlows   int64

	JobsCompleted      int64
	JobsFailed         int64
	DirectivesApplied  int64
	AvgJobDuration     time.Duration
}

func (m *BasicMetrics) OnFlowStart(ctx context.Context, flowUUID string) {
	m.flowsStarted.Add(1)
}

func (m *BasicMetrics) OnFlowCompleted(ctx context.Context, flowUUID string) {
	m.flowsCompleted.Add(1)
}

func (m *BasicMetrics) OnFlowFailed(ctx context.Context, flowUUID string, err error) {
	m.flowsFailed.Add(1)
}

func (m *BasicMetrics) OnJobCompleted(ctx context.Context, job *Job, resp *Response, err error, d time.Duration) {
	if err != nil {
		m.jobsFailed.Add(1)
		return
	}
	m.jobsCompleted.Add(1)
	m.totalDuration.Add(d.Nanoseconds())
}

func (m *BasicMetrics) OnDirectiveApplied(ctx context.Context, job *Job, kind string, inserted []string) {
	m.directives.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.flowsStarted.Load()
	completed := m.flowsCompleted.Load()
	failed := m.flowsFailed.Load()
	jobs := m.jobsCompleted.Load()
	totalNs := m.totalDuration.Load()

	var avg time.Duration
	if jobs > 0 {
		avg = time.Duration(totalNs / jobs)
	}

	return BasicMetricsSnapshot{
		FlowsStarted:      started,
		FlowsCompleted:    completed,
		FlowsFailed:       failed,
		PendingFlows:      started - completed - failed,
		JobsCompleted:     jobs,
		JobsFailed:        m.jobsFailed.Load(),
		DirectivesApplied: m.directives.Load(),
		AvgJobDuration:    avg,
	}
}

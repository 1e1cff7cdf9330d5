package taskrunner

import (
	"time"

	"github.com/ygrebnov/taskrunner/metrics"
)

// Instrument names recorded by every Runner.
const (
	MetricTasksQueued    = "taskrunner_tasks_queued_total"
	MetricTasksStarted   = "taskrunner_tasks_started_total"
	MetricTasksCompleted = "taskrunner_tasks_completed_total"
	MetricTasksFailed    = "taskrunner_tasks_failed_total"
	MetricTasksInflight  = "taskrunner_tasks_inflight"
	MetricTaskDuration   = "taskrunner_task_duration_seconds"
	MetricAborts         = "taskrunner_aborts_total"
)

type instruments struct {
	queued    metrics.Counter
	started   metrics.Counter
	completed metrics.Counter
	failed    metrics.Counter
	inflight  metrics.UpDownCounter
	duration  metrics.Histogram
	aborts    metrics.Counter
}

func newInstruments(p metrics.Provider, runner string) instruments {
	attrs := metrics.WithAttributes(map[string]string{"runner": runner})
	return instruments{
		queued: p.Counter(MetricTasksQueued, attrs,
			metrics.WithDescription("tasks accepted into the queue"), metrics.WithUnit("1")),
		started: p.Counter(MetricTasksStarted, attrs,
			metrics.WithDescription("tasks that acquired the gate and began executing"), metrics.WithUnit("1")),
		completed: p.Counter(MetricTasksCompleted, attrs,
			metrics.WithDescription("tasks recorded as done, failed or not"), metrics.WithUnit("1")),
		failed: p.Counter(MetricTasksFailed, attrs,
			metrics.WithDescription("tasks recorded as done with an error"), metrics.WithUnit("1")),
		inflight: p.UpDownCounter(MetricTasksInflight, attrs,
			metrics.WithDescription("tasks currently executing"), metrics.WithUnit("1")),
		duration: p.Histogram(MetricTaskDuration, attrs,
			metrics.WithDescription("task body execution time"), metrics.WithUnit("seconds")),
		aborts: p.Counter(MetricAborts, attrs,
			metrics.WithDescription("runs aborted by the error callback"), metrics.WithUnit("1")),
	}
}

func (in instruments) begin() {
	in.started.Add(1)
	in.inflight.Add(1)
}

func (in instruments) finish(d time.Duration) {
	in.inflight.Add(-1)
	in.duration.Record(d.Seconds())
}

func (in instruments) record(failed bool) {
	in.completed.Add(1)
	if failed {
		in.failed.Add(1)
	}
}

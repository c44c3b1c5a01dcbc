package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports control-loop health to Prometheus.
type Collector struct {
	ticks           prometheus.Counter
	failures        *prometheus.CounterVec
	regularizations prometheus.Counter
	saturations     prometheus.Counter
	tickDuration    prometheus.Histogram
	taskError       prometheus.Gauge
}

// NewCollector creates the loop metrics and registers them with reg. A nil
// reg leaves them unregistered, which is what tests and one-shot CLI runs
// want.
func NewCollector(reg prometheus.Registerer, arm string) (*Collector, error) {
	labels := prometheus.Labels{"arm": arm}
	c := &Collector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskctl",
			Subsystem:   "controller",
			Name:        "ticks_total",
			Help:        "Total number of controller invocations",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "taskctl",
			Subsystem:   "controller",
			Name:        "failures_total",
			Help:        "Controller invocations that returned an error, by class",
			ConstLabels: labels,
		}, []string{"class"}),
		regularizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskctl",
			Subsystem:   "controller",
			Name:        "regularizations_total",
			Help:        "Ticks on which the task-space inertia needed regularizing",
			ConstLabels: labels,
		}),
		saturations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskctl",
			Subsystem:   "controller",
			Name:        "saturated_joints_total",
			Help:        "Joint torques clamped to their limit, summed over ticks",
			ConstLabels: labels,
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "taskctl",
			Subsystem:   "controller",
			Name:        "tick_duration_seconds",
			Help:        "Wall time of one controller invocation",
			Buckets:     []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			ConstLabels: labels,
		}),
		taskError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "taskctl",
			Subsystem:   "controller",
			Name:        "task_error_meters",
			Help:        "Distance from end effector to target at the last tick",
			ConstLabels: labels,
		}),
	}

	if reg == nil {
		return c, nil
	}
	var err error
	if c.ticks, err = register(reg, c.ticks); err != nil {
		return nil, err
	}
	if c.failures, err = register(reg, c.failures); err != nil {
		return nil, err
	}
	if c.regularizations, err = register(reg, c.regularizations); err != nil {
		return nil, err
	}
	if c.saturations, err = register(reg, c.saturations); err != nil {
		return nil, err
	}
	if c.tickDuration, err = register(reg, c.tickDuration); err != nil {
		return nil, err
	}
	if c.taskError, err = register(reg, c.taskError); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg, or returns the collector already registered
// under the same descriptor so that several runs of one arm share series.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveTick records one successful controller invocation.
func (c *Collector) ObserveTick(d time.Duration, taskError float64, regularized bool, saturated int) {
	c.ticks.Inc()
	c.tickDuration.Observe(d.Seconds())
	c.taskError.Set(taskError)
	if regularized {
		c.regularizations.Inc()
	}
	c.saturations.Add(float64(saturated))
}

// ObserveFailure records a failed invocation under its error class.
func (c *Collector) ObserveFailure(class string) {
	c.ticks.Inc()
	c.failures.WithLabelValues(class).Inc()
}

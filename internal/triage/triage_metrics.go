package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage configuration subsystem.
type Metrics struct {
	ConfigChangesTotal *prometheus.CounterVec
	FailuresTotal      *prometheus.CounterVec
	Rules              prometheus.Gauge
	PromptRendersTotal prometheus.Counter
	PromptBytes        prometheus.Histogram
	PromptRules        prometheus.Histogram
	PromptDuration     prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConfigChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_config_changes_total",
			Help: "Successful triage configuration changes by action.",
		}, []string{"action"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_config_failures_total",
			Help: "Failed triage configuration operations by operation and kind.",
		}, []string{"op", "kind"}),
		Rules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intake_config_rules",
			Help: "Number of triage rules after the last change.",
		}),
		PromptRendersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_prompt_renders_total",
			Help: "Total system prompt renders.",
		}),
		PromptBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_prompt_bytes",
			Help:    "Size of rendered system prompts in bytes.",
			Buckets: prometheus.ExponentialBuckets(512, 2, 10), // 512B .. ~256KB
		}),
		PromptRules: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_prompt_rules",
			Help:    "Rules included per rendered system prompt.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		PromptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_prompt_duration_seconds",
			Help:    "Time to load the configuration and render the prompt.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}),
	}

	reg.MustRegister(
		m.ConfigChangesTotal,
		m.FailuresTotal,
		m.Rules,
		m.PromptRendersTotal,
		m.PromptBytes,
		m.PromptRules,
		m.PromptDuration,
	)

	return m
}

// Hooks returns Service hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnChange: func(action ChangeAction, ruleCount int) {
			m.ConfigChangesTotal.WithLabelValues(string(action)).Inc()
			m.Rules.Set(float64(ruleCount))
		},
		OnFailed: func(op string, kind Kind) {
			m.FailuresTotal.WithLabelValues(op, kind.String()).Inc()
		},
		OnPrompt: func(bytes, rules int, duration float64) {
			m.PromptRendersTotal.Inc()
			m.PromptBytes.Observe(float64(bytes))
			m.PromptRules.Observe(float64(rules))
			m.PromptDuration.Observe(duration)
		},
	}
}

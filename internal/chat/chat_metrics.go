package chat

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for chat streams.
type Metrics struct {
	StreamsTotal   *prometheus.CounterVec
	StreamDuration *prometheus.HistogramVec
	StreamChunks   prometheus.Histogram
	StreamBytes    prometheus.Histogram
	TokensIn       prometheus.Counter
	TokensOut      prometheus.Counter
}

// NewMetrics registers and returns chat metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StreamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_chat_streams_total",
			Help: "Total chat streams by provider and outcome.",
		}, []string{"provider", "status"}),
		StreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_chat_stream_duration_seconds",
			Help:    "Duration of chat streams in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~128s
		}, []string{"provider", "model"}),
		StreamChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_chat_stream_chunks",
			Help:    "Text chunks delivered per chat stream.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. 2048
		}),
		StreamBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_chat_stream_bytes",
			Help:    "Bytes of generated text per chat stream.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B .. ~1MB
		}),
		TokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		TokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
	}

	reg.MustRegister(
		m.StreamsTotal,
		m.StreamDuration,
		m.StreamChunks,
		m.StreamBytes,
		m.TokensIn,
		m.TokensOut,
	)

	return m
}

// Hooks returns Service hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnComplete: func(e *CompleteEvent) {
			status := "success"
			if !e.Success {
				status = "error"
			}
			m.StreamsTotal.WithLabelValues(e.Provider, status).Inc()
			m.StreamDuration.WithLabelValues(e.Provider, e.Model).Observe(e.Duration.Seconds())
			m.StreamChunks.Observe(float64(e.Chunks))
			m.StreamBytes.Observe(float64(e.Bytes))
			m.TokensIn.Add(float64(e.Usage.InputTokens))
			m.TokensOut.Add(float64(e.Usage.OutputTokens))
		},
	}
}

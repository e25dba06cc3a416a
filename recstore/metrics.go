package recstore

import (
	"time"

	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/prometheus/client_golang/prometheus"
)

// MustRegisterMetrics will register all store related metrics on the given registry.
// If metrics with the same name already exist on the registry this function will panic.
func MustRegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(searchDuration, searchCounter, commandsCounter)
}

func sampleSearch(model string, elapsed time.Duration, err error) {
	labels := prometheus.Labels{
		"status": status(err),
		"model":  model,
	}
	searchDuration.With(labels).Observe(elapsed.Seconds())
	searchCounter.With(labels).Inc()
}

func sampleCommands(cmds relcmd.Commands, err error) {
	st := status(err)
	for _, c := range cmds {
		commandsCounter.With(prometheus.Labels{
			"status": st,
			"code":   c.Code.String(),
		}).Inc()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var (
	searchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recstore_search_duration_seconds",
			Help:    "Duration of record searches",
			Buckets: prometheus.ExponentialBucketsRange(0.0001, 10, 20),
		},
		[]string{"status", "model"},
	)
	searchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recstore_search_total",
			Help: "Total of record searches",
		},
		[]string{"status", "model"},
	)
	commandsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recstore_commands_total",
			Help: "Total of relational commands applied to x2many fields",
		},
		[]string{"status", "code"},
	)
)

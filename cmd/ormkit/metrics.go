package main

import (
	"io"
	"runtime/debug"

	"github.com/birdie-ai/ormkit/recstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// writeMetrics writes the metrics of the program in the Prometheus text format.
func writeMetrics(w io.Writer) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(buildInfo)
	recstore.MustRegisterMetrics(registry)
	sampleBuildInfo()

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func sampleBuildInfo() {
	goVersion := "undefined"
	revision := "undefined"

	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				revision = setting.Value
			}
		}
	}
	buildInfo.With(prometheus.Labels{
		"goversion": goVersion,
		"revision":  revision,
	}).Set(1.0)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ormkit_build_info",
		Help: "Build information of ormkit",
	},
	[]string{"revision", "goversion"},
)

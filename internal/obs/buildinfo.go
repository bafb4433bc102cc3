package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	// buildInfo is always 1; version and commit ride on the labels.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portal_build_info",
			Help: "Scholarship portal API build information.",
		},
		[]string{"version", "commit"},
	)
)

// InitBuildInfo registers portal_build_info once and sets it for version/commit.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, commit).Set(1)
}

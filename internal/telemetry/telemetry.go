// Package telemetry ships the run's metrics to a Pushgateway. The
// process is one-shot, so there is nothing to scrape; pushing at the end
// of a run is the only way the counters leave the process.
package telemetry

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/clickaudit/clickaudit/internal/config"
)

const defaultJobName = "clickaudit"

// Push sends everything gathered from the default registry to the
// configured gateway. Without a configured URL it does nothing. Push
// failures are logged and swallowed, reporting must never fail a
// finished audit.
func Push(cfg config.TelemetryConfig, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}

	job := cfg.JobName
	if job == "" {
		job = defaultJobName
	}

	if err := push.New(cfg.PushgatewayURL, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		logger.Warn("telemetry.push_failed", "url", cfg.PushgatewayURL, "err", err)
	}
}

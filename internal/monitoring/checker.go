package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker watches the normalize runs recorded in the lookback window and
// posts an alert when failure rates cross their thresholds or finished runs
// persisted no records.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker returns a Checker polling every cfg.CheckIntervalSecs, five
// minutes when unset.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run checks once per interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.runs"))
	log.Info("watching normalize runs",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("run watcher stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check evaluates one snapshot of recent runs and returns the alerts it
// raised. A snapshot that cannot be collected raises nothing.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		zap.L().Warn("monitoring: collect run snapshot", zap.Error(err))
		return nil
	}

	log := zap.L().With(
		zap.String("component", "monitoring.runs"),
		zap.Int("runs_total", snap.RunsTotal),
		zap.Int("runs_failed", snap.RunsFailed),
		zap.Float64("run_fail_rate", snap.RunFailRate),
		zap.Float64("escalation_fail_rate", snap.EscalationFailRate),
		zap.Int("records_persisted", snap.Counts.RecordsPersisted),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: runs healthy")
		return nil
	}

	kinds := make([]string, len(alerts))
	for i, a := range alerts {
		kinds[i] = string(a.Type)
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: run alerts raised",
		zap.Strings("alerts", kinds),
		zap.Int("delivered", sent),
	)
	return alerts
}

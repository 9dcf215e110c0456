package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate        AlertType = "run_failure_rate"
	AlertEscalationFailureRate AlertType = "escalation_failure_rate"
	AlertNoRecordsPersisted    AlertType = "no_records_persisted"
)

// Minimum sample sizes before a rate is trusted.
const (
	minFinishedRuns = 3
	minEscalations  = 10
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.RunFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Normalize run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.RunFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.RunFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.Counts.EscalationsAttempted >= minEscalations && snap.EscalationFailRate > a.cfg.EscalationFailThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEscalationFailureRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"LLM escalation failure rate %.1f%% exceeds threshold %.1f%% (%d of %d in last %dh)",
				snap.EscalationFailRate*100, a.cfg.EscalationFailThreshold*100,
				snap.Counts.EscalationsFailed, snap.Counts.EscalationsAttempted, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.EscalationFailRate,
				"threshold":    a.cfg.EscalationFailThreshold,
				"failed":       snap.Counts.EscalationsFailed,
				"attempted":    snap.Counts.EscalationsAttempted,
			},
			Timestamp: now,
		})
	}

	if snap.RunsComplete > 0 && snap.Counts.Models > 0 && snap.Counts.RecordsPersisted == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertNoRecordsPersisted,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d models normalized but no spec records persisted in last %dh",
				snap.Counts.Models, snap.LookbackHours,
			),
			Details: map[string]any{
				"models":           snap.Counts.Models,
				"persist_failures": snap.Counts.PersistFailures,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

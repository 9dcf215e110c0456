package model

import "time"

// RunStatus represents the state of a normalization run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunCounts are the totals reported by a pipeline run.
type RunCounts struct {
	Products             int `json:"products"`
	Documents            int `json:"documents"`
	DocumentFailures     int `json:"document_failures"`
	Models               int `json:"models"`
	Skipped              int `json:"skipped"`
	Failed               int `json:"failed"`
	RecordsPersisted     int `json:"records_persisted"`
	PersistFailures      int `json:"persist_failures"`
	EscalationsAttempted int `json:"escalations_attempted"`
	EscalationsFailed    int `json:"escalations_failed"`
}

// Add accumulates other into c.
func (c *RunCounts) Add(other RunCounts) {
	c.Products += other.Products
	c.Documents += other.Documents
	c.DocumentFailures += other.DocumentFailures
	c.Models += other.Models
	c.Skipped += other.Skipped
	c.Failed += other.Failed
	c.RecordsPersisted += other.RecordsPersisted
	c.PersistFailures += other.PersistFailures
	c.EscalationsAttempted += other.EscalationsAttempted
	c.EscalationsFailed += other.EscalationsFailed
}

// PipelineRun is the persisted record of one normalize run.
type PipelineRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Counts     RunCounts  `json:"counts"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

package model

import "time"

const JobTypeFirmwareUpdate = "firmware-update"

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

func IsTerminalJobStatus(status string) bool {
	return status == JobStatusSucceeded || status == JobStatusFailed
}

// Job is the authoritative ledger record for one unit of work targeting one
// device on one agent. StartedAt and FinishedAt are latched: set at most
// once, never overwritten.
type Job struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	AgentID    string         `json:"agent_id"`
	DeviceID   string         `json:"device_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	Status     string         `json:"status"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// JobDescriptor is the reduced view handed to an agent on pull. Ledger
// bookkeeping fields stay server-side.
type JobDescriptor struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	AgentID  string         `json:"agent_id"`
	DeviceID string         `json:"device_id"`
	Payload  map[string]any `json:"payload,omitempty"`
}

func (j *Job) Descriptor() *JobDescriptor {
	return &JobDescriptor{
		ID:       j.ID,
		Type:     j.Type,
		AgentID:  j.AgentID,
		DeviceID: j.DeviceID,
		Payload:  j.Payload,
	}
}

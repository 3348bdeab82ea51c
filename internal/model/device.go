package model

import "time"

// Device is one piece of managed hardware attached to an agent. The set of
// devices for an agent is wholly owned by that agent's most recent report.
type Device struct {
	DeviceID     string    `json:"device_id"`
	AgentID      string    `json:"agent_id"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Model        string    `json:"model,omitempty"`
	FWVersion    string    `json:"fw_version,omitempty"`
	Status       string    `json:"status,omitempty"`
	ReportedAt   time.Time `json:"reported_at"`
}

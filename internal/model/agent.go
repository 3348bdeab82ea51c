package model

import "time"

type Agent struct {
	ID           string         `json:"id"`
	DisplayName  string         `json:"display_name"`
	TenantID     *string        `json:"tenant_id,omitempty"`
	SiteID       *string        `json:"site_id,omitempty"`
	Paired       bool           `json:"paired"`
	PairedAt     *time.Time     `json:"paired_at,omitempty"`
	PairedBy     *string        `json:"paired_by,omitempty"`
	AgentVersion string         `json:"agent_version,omitempty"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
	MachineInfo  map[string]any `json:"machine_info,omitempty"`
	LastSeenAt   *time.Time     `json:"last_seen_at,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// AgentView is an Agent annotated with the derived online flag. Online is
// never stored; it is computed from LastSeenAt at read time.
type AgentView struct {
	Agent
	Online bool `json:"online"`
}

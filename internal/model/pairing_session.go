package model

import "time"

// PairingSession is a short-lived, single-use code binding exactly one agent.
// Expired sessions are rejected lazily at claim time, never swept.
type PairingSession struct {
	Code      string     `json:"code"`
	AgentID   string     `json:"agent_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

func (s *PairingSession) Live(now time.Time) bool {
	return s.UsedAt == nil && now.Before(s.ExpiresAt)
}

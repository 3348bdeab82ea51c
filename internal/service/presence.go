package service

import "time"

// OnlineTTL is the liveness window: an agent counts as online while its last
// contact is less than this far in the past. It is a design constant, not
// configuration.
const OnlineTTL = 15 * time.Second

// Online derives reachability from a last-contact timestamp. A nil timestamp
// means the agent was never seen; a negative age (clock skew) is treated as
// not-yet-seen rather than online.
func Online(lastSeenAt *time.Time, now time.Time) bool {
	if lastSeenAt == nil {
		return false
	}
	age := now.Sub(*lastSeenAt)
	return age >= 0 && age < OnlineTTL
}

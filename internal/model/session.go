package model

import "time"

// Session is an ephemeral authorization grant. At most one live session
// exists per username: issuing a new one removes all prior sessions for
// that username. Role is a snapshot taken at issuance; authorization checks
// always re-read the owning user, so a revocation wins immediately.
type Session struct {
	ID        string
	Username  string
	Role      Role
	Client    string // free-form client descriptor (user agent, console name)
	CreatedAt time.Time
}

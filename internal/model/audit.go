package model

import "time"

// Audit action tags. Each mutating operation appends exactly one entry with
// one of these tags; entries are never updated or deleted.
const (
	AuditBootstrapped     = "SYSTEM_BOOTSTRAPPED"
	AuditLogin            = "LOGIN"
	AuditLoginFailed      = "LOGIN_FAILED"
	AuditLogout           = "LOGOUT"
	AuditAdminCreated     = "ADMIN_CREATED"
	AuditUserCreated      = "USER_CREATED"
	AuditTokenRefreshed   = "TOKEN_REFRESHED"
	AuditAccessRevoked    = "ACCESS_REVOKED"
	AuditAccessGranted    = "ACCESS_GRANTED"
	AuditUserDeleted      = "USER_DELETED"
	AuditRequestSubmitted = "REQUEST_SUBMITTED"
	AuditRequestApproved  = "REQUEST_APPROVED"
	AuditRequestRejected  = "REQUEST_REJECTED"
)

// AuditLogEntry is an immutable, time-ordered fact about one action. Target
// ids may reference records that have since been hard-deleted; the entry
// remains a valid historical statement.
type AuditLogEntry struct {
	ID        string
	At        time.Time
	ActorID   string
	ActorRole Role
	TargetID  string
	Action    string
	Detail    string
	Metadata  map[string]any
}

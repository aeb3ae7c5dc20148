package model

import "time"

// Role is the three-tier authority order enforced on every mutating call.
// MASTER_ADMIN outranks ADMIN which outranks PRODUCER.
type Role string

const (
	RoleMasterAdmin Role = "MASTER_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleProducer    Role = "PRODUCER"
)

// UserStatus tracks whether a principal may authenticate.
type UserStatus string

const (
	StatusActive  UserStatus = "ACTIVE"
	StatusRevoked UserStatus = "REVOKED"
)

// Profile carries display and provenance details for a user. Source records
// how the account came to exist (e.g. "BOOTSTRAP", "ADMIN", "TOKEN_REQUEST")
// and RequestID links back to the originating token request when there is one.
type Profile struct {
	Name         string
	SocialHandle string
	Source       string
	RequestID    string
}

// DeliverySummary is the outcome of the most recent notification attempt
// aimed at this user, denormalized onto the record for quick display.
type DeliverySummary struct {
	Channel string
	Status  string
	Error   string
	At      time.Time
}

// User is an identity record. Usernames are globally unique and compared
// case-insensitively; only the SHA-256 digest of the bearer token is stored,
// never the raw token. Version supports compare-and-swap updates so two
// concurrent administrators cannot silently overwrite each other.
type User struct {
	ID           string
	Username     string // stored lowercase
	TokenDigest  string
	Role         Role
	Status       UserStatus
	Email        string
	Phone        string
	Profile      Profile
	ExpiresAt    *time.Time // nil means the token never expires
	CreatedBy    string     // id of the creating actor, empty for bootstrap
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastDelivery *DeliverySummary
	Version      int
}

package model

import "time"

// RequestStatus is the lifecycle of a token request. Transitions are one-way:
// PENDING may move to APPROVED or REJECTED exactly once.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// NotifyStatus tracks one side-channel notification obligation on a request.
type NotifyStatus string

const (
	NotifyPending NotifyStatus = "PENDING"
	NotifySent    NotifyStatus = "SENT"
	NotifyFailed  NotifyStatus = "FAILED"
)

// TokenRequest is a public intake record asking for producer access. The
// admin-alerted and applicant-notified fields are independent: either can
// fail without affecting the request's own status.
type TokenRequest struct {
	ID                 string
	FirstName          string
	LastName           string
	SocialHandle       string
	DesiredUsername    string // stored lowercase
	Phone              string // strict E.164
	Status             RequestStatus
	LinkedUserID       string // set on approval
	AdminNotify        NotifyStatus
	AdminNotifyErr     string
	ApplicantNotify    NotifyStatus
	ApplicantNotifyErr string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int
}

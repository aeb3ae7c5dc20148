package model

import "time"

// Channel is the transport a notification goes out on.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// DeliveryStatus is the terminal outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "SENT"
	DeliveryFailed DeliveryStatus = "FAILED"
)

// DeliveryLog records the outcome of a single notification attempt. OwnerID
// is the id of the user or token request the attempt pertains to.
type DeliveryLog struct {
	ID          string
	OwnerID     string
	Destination string
	Channel     Channel
	Status      DeliveryStatus
	ProviderRef string
	Error       string
	At          time.Time
}

package model

import "time"

// Bootstrap is the singleton marker written when the sole master admin is
// created. Its conditional insert is the linearization point that makes a
// racing second bootstrap fail instead of creating a second master.
type Bootstrap struct {
	MasterReady   bool
	MasterAdminID string
	CreatedAt     time.Time
}

package domain

import "time"

// OperationType enumerates controller operations that can be retried in the
// background.
type OperationType string

const (
	OperationAuthorize OperationType = "authorize"
	OperationRevoke    OperationType = "revoke"
	OperationUpdate    OperationType = "update"
)

// RetryOperation is an in-flight controller sync task. Operations live only
// in process memory and are not durable across a restart.
type RetryOperation struct {
	ID           string
	Type         OperationType
	MAC          string
	GrantID      string // local grant id, used to finalize state on success
	ControllerID string // controller-assigned grant id, if already known
	ExpiresAt    time.Time
	UpKbps       int
	DownKbps     int
	Attempts     int
	NextRetryUTC time.Time
	CreatedUTC   time.Time
}

package model

// DeliveryState tracks a document through the upload state machine.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliverySent
	DeliveryAccepted
	DeliveryRejected
	DeliveryTransientFailure
	// DeliveryManualRequired means the document was written for manual
	// hand-off (print mode) instead of being POSTed.
	DeliveryManualRequired
)

// String returns the state name used in status lines and metrics labels.
func (s DeliveryState) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliverySent:
		return "sent"
	case DeliveryAccepted:
		return "accepted"
	case DeliveryRejected:
		return "rejected"
	case DeliveryTransientFailure:
		return "transient_failure"
	case DeliveryManualRequired:
		return "manual_delivery_required"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state machine stops at this state.
func (s DeliveryState) Terminal() bool {
	switch s {
	case DeliveryAccepted, DeliveryRejected, DeliveryManualRequired:
		return true
	default:
		return false
	}
}

// UploadResult is the immutable per-document outcome of one upload
// transaction.
type UploadResult struct {
	// Token identifies the document this result belongs to.
	Token string

	State DeliveryState

	// ServerID is the identifier assigned by the scheduler on acceptance.
	ServerID string

	// Diagnostic carries the server's rejection message verbatim, or the
	// final transport error after retries were exhausted.
	Diagnostic string

	// Attempts counts POSTs made for this document, including the
	// successful one.
	Attempts int
}

package constants

// RunStatus is the canonical status for rows in the runs table.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusQueued   RunStatus = "QUEUED"
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusMapped   RunStatus = "MAPPED"   // payload produced
	RunStatusRejected RunStatus = "REJECTED" // validation errors, report returned
	RunStatusFailed   RunStatus = "FAILED"   // terminal pipeline failure
)

// RunStatusDuplicate marks a run whose payload was already produced by an
// earlier MAPPED run with the same idempotency key or content.
const RunStatusDuplicate RunStatus = "DUPLICATE"

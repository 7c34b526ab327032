package generation

import "time"

// Status is the durable activation state of a generation.
type Status string

const (
	// StatusPending marks a generation recorded before its activation
	// completed. Pending generations block pruning.
	StatusPending Status = "pending"
	// StatusActive marks the single generation currently bound to the
	// running profile. At most one generation per profile is active.
	StatusActive Status = "active"
	// StatusSuperseded marks a generation demoted by a later activation.
	StatusSuperseded Status = "superseded"
	// StatusFailed marks a generation whose activation did not complete.
	StatusFailed Status = "failed"
)

// Generation is a recorded binding of a closure to a profile at a point in
// time. The closure reference is immutable once recorded; numbers increase
// strictly per profile and are never reused, even after pruning.
type Generation struct {
	Profile        string    `json:"profile"`
	Number         uint64    `json:"number"`
	ClosurePath    string    `json:"closure_path"`
	Specialisation string    `json:"specialisation,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Policy selects which generations survive a prune. The active generation is
// always preserved regardless of policy.
type Policy struct {
	// KeepLast retains the N most recent generations besides the active one.
	KeepLast int
	// KeepNewerThan retains generations created within the duration.
	KeepNewerThan time.Duration
	// KeepSpecialisations retains every generation recorded with a
	// specialisation name.
	KeepSpecialisations bool
}

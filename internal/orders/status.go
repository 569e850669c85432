package orders

import "strings"

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusPending    Status = "PENDING"
	StatusReview     Status = "REVIEW"
	StatusCompleted  Status = "COMPLETED"
	StatusIncomplete Status = "INCOMPLETE"
	StatusCancelled  Status = "CANCELLED"

	// StatusConfirmed is what the backend stores for a completed reception.
	// Normalize folds it into StatusCompleted.
	StatusConfirmed Status = "CONFIRMED"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:    {StatusPending: true},
	StatusPending:    {StatusReview: true, StatusCompleted: true, StatusIncomplete: true},
	StatusReview:     {StatusCompleted: true, StatusIncomplete: true},
	StatusCompleted:  {},
	StatusIncomplete: {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from.Normalize()][to.Normalize()]
}

// ParseStatus trims and upper-cases s before normalizing it.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s))).Normalize()
}

func (s Status) Normalize() Status {
	if s == StatusConfirmed {
		return StatusCompleted
	}
	return s
}

// Terminal reports whether no further transition is offered from s.
func (s Status) Terminal() bool {
	next, ok := validNext[s.Normalize()]
	return ok && len(next) == 0
}

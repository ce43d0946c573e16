package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrNotFound          = errors.New("order not found")
)

// transitions is the only definition of the order lifecycle. Validation and
// the list of offerable actions both read it.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// stageDurations is how long an order is expected to stay in each status.
var stageDurations = map[Status]time.Duration{
	StatusPending:   2 * time.Minute,
	StatusConfirmed: 5 * time.Minute,
	StatusPreparing: 15 * time.Minute,
	StatusReady:     2 * time.Minute,
	StatusDelivered: 0,
	StatusCancelled: 0,
}

// NextPossibleStatuses returns the statuses reachable from s in one step.
func NextPossibleStatuses(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

func IsValidTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsFinal reports whether s has no outgoing transition.
func IsFinal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func CanCancel(s Status) bool {
	return IsValidTransition(s, StatusCancelled)
}

// EstimatedCompletion is the expected time the order leaves status s when it
// entered s at from.
func EstimatedCompletion(s Status, from time.Time) time.Time {
	return from.Add(stageDurations[s])
}

type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Transition moves o to next and returns the updated copy. On error the
// returned order is o itself, untouched.
func Transition(o Order, next Status, actor, note string, at time.Time) (Order, error) {
	if !next.Valid() {
		return o, fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}
	if !IsValidTransition(o.Status, next) {
		return o, &TransitionError{OrderID: o.ID, From: o.Status, To: next}
	}
	if note == "" {
		note = fmt.Sprintf("Status changed to %s", next.DisplayName())
	}

	at = at.UTC()
	out := o.Clone()
	out.Status = next
	out.StatusHistory = append(out.StatusHistory, StatusEntry{
		Status:    next,
		Timestamp: at,
		UpdatedBy: actor,
		Notes:     note,
	})
	out.UpdatedAt = at
	out.EstimatedCompletion = EstimatedCompletion(next, at)
	return out, nil
}

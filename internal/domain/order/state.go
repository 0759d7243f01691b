package order

import "fmt"

// Transition is the planned effect of a status change.
type Transition struct {
	From Status
	To   Status
	// Changed is false when the order already has the requested status.
	Changed bool
	// Restock is true only for the single move into cancelled.
	Restock bool
}

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	On(target Status) (Transition, error)
}

// activeState covers pending, confirmed, shipped and delivered. Moves between
// them are unrestricted; each of them may be cancelled.
type activeState struct{ status Status }

func (s activeState) Status() Status { return s.status }

func (s activeState) On(target Status) (Transition, error) {
	t := Transition{From: s.status, To: target}
	if target == s.status {
		return t, nil
	}
	t.Changed = true
	t.Restock = target == StatusCancelled
	return t, nil
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) On(target Status) (Transition, error) {
	if target == StatusCancelled {
		return Transition{From: StatusCancelled, To: StatusCancelled}, nil
	}
	return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, StatusCancelled, target)
}

func stateOf(s Status) OrderState {
	if s == StatusCancelled {
		return cancelledState{}
	}
	return activeState{status: s}
}

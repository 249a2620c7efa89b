package combo

import "time"

// Transition is the result of feeding one answer into the combo machine.
type Transition struct {
	// Active is the open combo after the answer, nil when none is open.
	Active *State
	// Closed is the combo ended by this answer, if any.
	Closed *State
	// Notable is set when Closed reached NotableLength.
	Notable bool
	// Milestone is set when this answer reached a milestone count.
	Milestone *Milestone
	Started   bool
}

// Count returns the combo length after the transition.
func (t Transition) Count() int {
	if t.Active == nil {
		return 0
	}
	return t.Active.ComboCount
}

// Advance applies one answer. active may be nil (NoActiveCombo). newID is
// used only when a combo starts.
//
//	NoActiveCombo --correct--> Active(1)
//	Active(n)     --correct--> Active(n+1)
//	Active(n)     --wrong----> NoActiveCombo (maxCombo = n)
//	NoActiveCombo --wrong----> NoActiveCombo
func Advance(active *State, correct bool, studentID, sessionID string, newID func() string, now time.Time) (Transition, error) {
	if !correct {
		if !active.IsActive() {
			return Transition{}, nil
		}
		notable, err := active.Close(now)
		if err != nil {
			return Transition{}, err
		}
		return Transition{Closed: active, Notable: notable}, nil
	}

	if !active.IsActive() {
		return Transition{Active: Start(newID(), studentID, sessionID, now), Started: true}, nil
	}

	m, ok, err := active.Increment(now)
	if err != nil {
		return Transition{}, err
	}
	tr := Transition{Active: active}
	if ok {
		tr.Milestone = &m
	}
	return tr, nil
}

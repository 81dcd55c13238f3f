package playtestdomain

// State is a playtest session's lifecycle position.
type State string

const (
	StateOpen             State = "open"
	StateAwaitingFinalize State = "awaiting_finalize"
	StateApproved         State = "approved"
	StateRejected         State = "rejected"
)

var transitions = map[State][]State{
	StateOpen:             {StateAwaitingFinalize},
	StateAwaitingFinalize: {StateApproved, StateRejected},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist.
func (s State) Terminal() bool { return s == StateApproved || s == StateRejected }

func (s State) Valid() bool {
	switch s {
	case StateOpen, StateAwaitingFinalize, StateApproved, StateRejected:
		return true
	}
	return false
}

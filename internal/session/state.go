package session

// State is the lifecycle position of a Session.
type State int

const (
	CheckingCache State = iota
	HitComplete
	Generating
	Completed
	Cancelled
	Failed
)

var stateNames = map[State]string{
	CheckingCache: "checking_cache",
	HitComplete:   "hit_complete",
	Generating:    "generating",
	Completed:     "completed",
	Cancelled:     "cancelled",
	Failed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s != CheckingCache && s != Generating
}

// Ready reports whether the session finished with a usable thumbnail
// sequence.
func (s State) Ready() bool {
	return s == HitComplete || s == Completed
}

func (s State) outcome() string {
	switch s {
	case HitComplete:
		return "hit"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

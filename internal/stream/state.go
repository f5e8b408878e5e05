package stream

// State is the lifecycle position of the managed connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedClean
	StateClosedAbnormal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedClean:
		return "closed_clean"
	case StateClosedAbnormal:
		return "closed_abnormal"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type event int

const (
	eventConnect event = iota
	eventOpen
	eventMessage
	eventCleanClose
	eventAbnormalClose
	eventDisconnect
)

// next is the transition table. ok is false when e is not accepted in s.
func next(s State, e event) (State, bool) {
	switch e {
	case eventConnect:
		return StateConnecting, true
	case eventOpen:
		if s == StateConnecting {
			return StateOpen, true
		}
	case eventMessage:
		if s == StateOpen {
			return StateOpen, true
		}
	case eventCleanClose:
		if s == StateConnecting || s == StateOpen {
			return StateClosedClean, true
		}
	case eventAbnormalClose:
		if s == StateConnecting || s == StateOpen {
			return StateClosedAbnormal, true
		}
	case eventDisconnect:
		if s == StateConnecting || s == StateOpen || s == StateClosedAbnormal {
			return StateClosedClean, true
		}
	}
	return s, false
}

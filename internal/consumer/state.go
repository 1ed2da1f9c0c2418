package consumer

type State int32

const (
	StateStarting State = iota
	StateSubscribed
	StateIdle
	StateHandling
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateSubscribed:
		return "subscribed"
	case StateIdle:
		return "idle"
	case StateHandling:
		return "handling"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Running reports whether the consumer holds a live subscription.
func (s State) Running() bool {
	return s == StateSubscribed || s == StateIdle || s == StateHandling
}

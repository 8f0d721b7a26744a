package deploy

// State is a step of the deployment state machine. Transitions only move
// forward: Idle, BytecodePublished, ApplicationCreated, then Confirmed,
// Uncertain or Failed.
type State int

const (
	StateIdle State = iota
	StateBytecodePublished
	StateApplicationCreated
	StateConfirmed
	StateUncertain
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBytecodePublished:
		return "bytecode_published"
	case StateApplicationCreated:
		return "application_created"
	case StateConfirmed:
		return "confirmed"
	case StateUncertain:
		return "uncertain"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateUncertain || s == StateFailed
}

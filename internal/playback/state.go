package playback

// State is the engine's playback state.
type State int

const (
	// StateIdle means no read has started yet.
	StateIdle State = iota
	// StateFetching means chunks are being synthesized and nothing plays yet.
	StateFetching
	// StatePlaying means the driver is playing or waiting for the next job.
	StatePlaying
	// StatePaused means the output device is suspended mid-chunk.
	StatePaused
	// StateStopped follows an explicit stop.
	StateStopped
	// StateFinished follows the natural end of the last chunk.
	StateFinished
	// StateErrored follows a fetch failure or a fatal decode failure.
	StateErrored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetchingAndQueuing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// transitions lists the valid moves of the engine state machine.
var transitions = map[State][]State{
	StateIdle:     {StateFetching, StatePlaying, StateStopped},
	StateFetching: {StatePlaying, StateIdle, StateErrored, StateStopped},
	StatePlaying:  {StatePaused, StateFinished, StateErrored, StateStopped},
	StatePaused:   {StatePlaying, StateFinished, StateErrored, StateStopped},
	StateStopped:  {StateFetching, StateStopped},
	StateFinished: {StateFetching, StateStopped},
	StateErrored:  {StateFetching, StateStopped},
}

// CanTransition reports whether the engine may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

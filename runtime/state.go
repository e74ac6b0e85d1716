package runtime

// State reports where the runtime is within a round. Rounds run one at a
// time; between rounds the runtime is idle.
type State int32

const (
	// StateIdle means no round is in flight.
	StateIdle State = iota
	// StateAwaitingModelResponse means the opening model call of a round is
	// in flight.
	StateAwaitingModelResponse
	// StateExecutingTools means the runtime is executing the tool calls the
	// model requested.
	StateExecutingTools
	// StateAwaitingFinalResponse means tool results have been recorded and a
	// follow-up model call is in flight.
	StateAwaitingFinalResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModelResponse:
		return "awaiting_model_response"
	case StateExecutingTools:
		return "executing_tools"
	case StateAwaitingFinalResponse:
		return "awaiting_final_response"
	default:
		return "unknown"
	}
}

package ingestion

import "fmt"

// NoPart is the Part of states that are not tied to a batch.
const NoPart = -1

// Phase is a step of the ingestion state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseStoreUnreachable
	PhaseLoading
	PhaseDeterminingRange
	PhaseFetching
	PhaseEmbedding
	PhaseUpserting
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:             "idle",
	PhaseConnecting:       "connecting",
	PhaseStoreUnreachable: "store_unreachable",
	PhaseLoading:          "loading",
	PhaseDeterminingRange: "determining_range",
	PhaseFetching:         "fetching",
	PhaseEmbedding:        "embedding",
	PhaseUpserting:        "upserting",
	PhaseDone:             "done",
	PhaseFailed:           "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further transitions follow.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed || p == PhaseStoreUnreachable
}

// State is the driver's position in the state machine. Part is NoPart
// outside the batch loop; Err is set for failed states.
type State struct {
	Phase Phase
	Part  int
	Err   error
}

func (s State) String() string {
	switch {
	case s.Phase == PhaseFailed && s.Part != NoPart:
		return fmt.Sprintf("failed(%d): %v", s.Part, s.Err)
	case s.Err != nil:
		return fmt.Sprintf("%s: %v", s.Phase, s.Err)
	case s.Part != NoPart && s.Phase != PhaseIdle:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Part)
	default:
		return s.Phase.String()
	}
}

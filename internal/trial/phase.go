package trial

// Phase is the coarse stage of a duel. Phases only ever move forward through
// the fixed sequence; Finished is terminal.
type Phase string

const (
	PhaseTopicSelection Phase = "topic_selection"
	PhaseRound1         Phase = "round_1"
	PhaseRound2         Phase = "round_2"
	PhaseFinished       Phase = "finished"
)

var phaseRank = map[Phase]int{
	PhaseTopicSelection: 0,
	PhaseRound1:         1,
	PhaseRound2:         2,
	PhaseFinished:       3,
}

var nextPhase = map[Phase]Phase{
	PhaseTopicSelection: PhaseRound1,
	PhaseRound1:         PhaseRound2,
	PhaseRound2:         PhaseFinished,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

// Before reports whether p precedes other in the fixed phase order.
func (p Phase) Before(other Phase) bool {
	return phaseRank[p] < phaseRank[other]
}

// IsRound reports whether p is one of the scored question rounds.
func (p Phase) IsRound() bool {
	return p == PhaseRound1 || p == PhaseRound2
}

// CanTransition reports whether from -> to is in the allowed transition table.
func CanTransition(from, to Phase) bool {
	return nextPhase[from] == to
}

package events

const (
	KindTurnStateChanged Kind = "turn_state.changed"
	KindTurnStarted      Kind = "turn_state.started"
	KindTurnCompleted    Kind = "turn_state.completed"
	KindTurnInterrupted  Kind = "turn_state.interrupted"
	KindTurnCancelled    Kind = "turn_state.cancelled"
)

// TurnStateChanged reports a state transition. Label is the text to show
// for the new state.
type TurnStateChanged struct {
	Base
	State string
	Label string
}

func NewTurnStateChanged(state, label string) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged), State: state, Label: label}
}

type TurnStarted struct {
	Base
	Turn        uint64
	UtteranceID string
}

func NewTurnStarted(turn uint64, utteranceID string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), Turn: turn, UtteranceID: utteranceID}
}

type TurnCompleted struct {
	Base
	Turn uint64
}

func NewTurnCompleted(turn uint64) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), Turn: turn}
}

// TurnInterrupted reports a barge-in. Turn is the turn that was cut off.
type TurnInterrupted struct {
	Base
	Turn uint64
}

func NewTurnInterrupted(turn uint64) TurnInterrupted {
	return TurnInterrupted{Base: NewBase(KindTurnInterrupted), Turn: turn}
}

// TurnCancelled reports a turn dropped before completing. Reason is a short
// machine-readable cause such as "preempted", "disabled" or "failed".
type TurnCancelled struct {
	Base
	Turn   uint64
	Reason string
}

func NewTurnCancelled(turn uint64, reason string) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), Turn: turn, Reason: reason}
}

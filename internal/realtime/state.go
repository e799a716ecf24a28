package realtime

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a Manager's push channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Signal is an input to the state machine.
type Signal int

const (
	SignalConnect Signal = iota
	SignalHandshakeOK
	SignalHandshakeFailed
	SignalClosed
	SignalRetry
	SignalGiveUp
	SignalDisconnect
)

func (s Signal) String() string {
	switch s {
	case SignalConnect:
		return "connect"
	case SignalHandshakeOK:
		return "handshake_ok"
	case SignalHandshakeFailed:
		return "handshake_failed"
	case SignalClosed:
		return "closed"
	case SignalRetry:
		return "retry"
	case SignalGiveUp:
		return "give_up"
	case SignalDisconnect:
		return "disconnect"
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// ErrIllegalTransition is returned by Transition for a signal the current
// state does not accept.
var ErrIllegalTransition = errors.New("illegal state transition")

type edge struct {
	from State
	sig  Signal
}

var transitions = map[edge]State{
	{StateDisconnected, SignalConnect}:       StateConnecting,
	{StateFailed, SignalConnect}:             StateConnecting,
	{StateConnecting, SignalHandshakeOK}:     StateOpen,
	{StateConnecting, SignalHandshakeFailed}: StateReconnecting,
	{StateConnecting, SignalClosed}:          StateReconnecting,
	{StateOpen, SignalClosed}:                StateReconnecting,
	{StateReconnecting, SignalRetry}:         StateConnecting,
	{StateReconnecting, SignalGiveUp}:        StateFailed,
}

// Transition returns the state reached from `from` on sig. Disconnect is
// accepted from every state. Any other pair not in the table is illegal,
// so for example a failed channel can only open again through Connect.
func Transition(from State, sig Signal) (State, error) {
	if sig == SignalDisconnect {
		return StateDisconnected, nil
	}
	to, ok := transitions[edge{from, sig}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, from, sig)
	}
	return to, nil
}

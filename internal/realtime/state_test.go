package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from State
		sig  Signal
		want State
	}{
		{StateDisconnected, SignalConnect, StateConnecting},
		{StateFailed, SignalConnect, StateConnecting},
		{StateConnecting, SignalHandshakeOK, StateOpen},
		{StateConnecting, SignalHandshakeFailed, StateReconnecting},
		{StateConnecting, SignalClosed, StateReconnecting},
		{StateOpen, SignalClosed, StateReconnecting},
		{StateReconnecting, SignalRetry, StateConnecting},
		{StateReconnecting, SignalGiveUp, StateFailed},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.sig)
		require.NoError(t, err, "%s on %s", tc.from, tc.sig)
		assert.Equal(t, tc.want, got, "%s on %s", tc.from, tc.sig)
	}
}

func TestDisconnectIsAcceptedEverywhere(t *testing.T) {
	for _, s := range []State{StateDisconnected, StateConnecting, StateOpen, StateReconnecting, StateFailed} {
		got, err := Transition(s, SignalDisconnect)
		require.NoError(t, err)
		assert.Equal(t, StateDisconnected, got)
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct {
		from State
		sig  Signal
	}{
		{StateFailed, SignalHandshakeOK},
		{StateFailed, SignalRetry},
		{StateOpen, SignalConnect},
		{StateOpen, SignalRetry},
		{StateDisconnected, SignalHandshakeOK},
		{StateDisconnected, SignalRetry},
		{StateConnecting, SignalGiveUp},
		{StateReconnecting, SignalHandshakeOK},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.sig)
		assert.ErrorIs(t, err, ErrIllegalTransition, "%s on %s", tc.from, tc.sig)
		assert.Equal(t, tc.from, got)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.Equal(t, "give_up", SignalGiveUp.String())
}

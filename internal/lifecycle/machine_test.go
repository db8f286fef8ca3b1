package lifecycle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	result    Result
	err       error
	requested []State
}

func (d *fakeDriver) SetState(s State) (Result, error) {
	d.requested = append(d.requested, s)
	return d.result, d.err
}

func TestRequestCompletedSynchronously(t *testing.T) {
	d := &fakeDriver{result: ResultCompleted}
	var transitions [][2]State
	m := NewMachine(d, Hooks{
		OnTransition: func(from, to State) { transitions = append(transitions, [2]State{from, to}) },
	})

	res, err := m.Request(StateReady)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res)
	assert.Equal(t, StateReady, m.Current())
	assert.Equal(t, [][2]State{{StateNull, StateReady}}, transitions)

	_, pending := m.Pending()
	assert.False(t, pending)
}

func TestRequestSameStateNoop(t *testing.T) {
	d := &fakeDriver{result: ResultCompleted}
	m := NewMachine(d, Hooks{})

	_, err := m.Request(StateReady)
	require.NoError(t, err)

	res, err := m.Request(StateReady)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, res)
	// The engine was asked exactly once.
	assert.Len(t, d.requested, 1)
}

func TestRequestSameTargetWhilePending(t *testing.T) {
	d := &fakeDriver{result: ResultPending}
	m := NewMachine(d, Hooks{})

	res, err := m.Request(StatePlaying)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)

	// Double play: already in flight, not re-sent to the engine.
	res, err = m.Request(StatePlaying)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)
	assert.Len(t, d.requested, 1)
}

func TestPendingTargetCoalesced(t *testing.T) {
	d := &fakeDriver{result: ResultPending}
	m := NewMachine(d, Hooks{})

	_, err := m.Request(StatePlaying)
	require.NoError(t, err)
	_, err = m.Request(StatePaused)
	require.NoError(t, err)

	target, pending := m.Pending()
	require.True(t, pending)
	assert.Equal(t, StatePaused, target)

	// Confirmation of the superseded target updates the authoritative
	// state but keeps the overlay.
	m.HandleStateChanged(StateNull, StatePlaying, false)
	assert.Equal(t, StatePlaying, m.Current())
	_, pending = m.Pending()
	assert.True(t, pending)

	// The final target's confirmation clears it.
	m.HandleStateChanged(StatePlaying, StatePaused, false)
	assert.Equal(t, StatePaused, m.Current())
	_, pending = m.Pending()
	assert.False(t, pending)
}

func TestMorePendingKeepsOverlay(t *testing.T) {
	d := &fakeDriver{result: ResultPending}
	m := NewMachine(d, Hooks{})

	_, err := m.Request(StatePlaying)
	require.NoError(t, err)

	// The engine reports an intermediate hop toward the target.
	m.HandleStateChanged(StateNull, StateReady, true)
	assert.Equal(t, StateReady, m.Current())
	_, pending := m.Pending()
	assert.True(t, pending)

	m.HandleStateChanged(StatePaused, StatePlaying, false)
	_, pending = m.Pending()
	assert.False(t, pending)
}

func TestRequestRejected(t *testing.T) {
	d := &fakeDriver{result: ResultRejected, err: fmt.Errorf("no display")}
	m := NewMachine(d, Hooks{})

	res, err := m.Request(StatePlaying)
	assert.Error(t, err)
	assert.Equal(t, ResultRejected, res)
	assert.Equal(t, StateNull, m.Current())
	_, pending := m.Pending()
	assert.False(t, pending)
}

func TestReachPausedHook(t *testing.T) {
	d := &fakeDriver{result: ResultPending}
	refreshed := 0
	m := NewMachine(d, Hooks{
		OnReachPaused: func() { refreshed++ },
	})

	_, err := m.Request(StatePaused)
	require.NoError(t, err)

	m.HandleStateChanged(StateNull, StateReady, true)
	assert.Equal(t, 0, refreshed)
	m.HandleStateChanged(StateReady, StatePaused, false)
	assert.Equal(t, 1, refreshed)
}

func TestPlayableHook(t *testing.T) {
	d := &fakeDriver{result: ResultCompleted}
	var playable []State
	m := NewMachine(d, Hooks{
		OnPlayable: func(s State) { playable = append(playable, s) },
	})

	_, _ = m.Request(StateReady)
	_, _ = m.Request(StatePaused)
	_, _ = m.Request(StatePlaying)

	assert.Equal(t, []State{StatePaused, StatePlaying}, playable)
}

func TestHandleErrorForcesReady(t *testing.T) {
	d := &fakeDriver{result: ResultPending}
	var sessionErr string
	m := NewMachine(d, Hooks{
		OnSessionError: func(msg string) { sessionErr = msg },
	})

	_, err := m.Request(StatePlaying)
	require.NoError(t, err)

	m.HandleError("decoder blew up")

	assert.Equal(t, StateReady, m.Current())
	_, pending := m.Pending()
	assert.False(t, pending)
	assert.Equal(t, "decoder blew up", sessionErr)
	// The regression to Ready was pushed down to the engine.
	assert.Equal(t, []State{StatePlaying, StateReady}, d.requested)
}

func TestStateOrdering(t *testing.T) {
	assert.True(t, StateNull < StateReady)
	assert.True(t, StateReady < StatePaused)
	assert.True(t, StatePaused < StatePlaying)
}

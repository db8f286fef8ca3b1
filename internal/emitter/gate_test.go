package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateSuppression(t *testing.T) {
	var g Gate

	assert.False(t, g.Suppressed())

	g.Enter()
	assert.True(t, g.Suppressed())
	g.Leave()
	assert.False(t, g.Suppressed())
}

func TestGateNesting(t *testing.T) {
	var g Gate

	g.Enter()
	g.Enter()
	g.Leave()
	assert.True(t, g.Suppressed())
	g.Leave()
	assert.False(t, g.Suppressed())
}

func TestGateLeaveWithoutEnter(t *testing.T) {
	var g Gate

	// Unbalanced Leave never goes negative.
	g.Leave()
	assert.False(t, g.Suppressed())
	g.Enter()
	assert.True(t, g.Suppressed())
}

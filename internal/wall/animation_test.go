package wall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnimation_FlagsClearIndependently(t *testing.T) {
	a := NewAnimationWithDurations(10*time.Millisecond, 200*time.Millisecond)
	defer a.Stop()

	a.Trigger()
	assert.True(t, a.Shaking())
	assert.True(t, a.Dusting())

	require.Eventually(t, func() bool { return !a.Shaking() }, time.Second, 5*time.Millisecond)
	assert.True(t, a.Dusting(), "dust outlives shake")
	require.Eventually(t, func() bool { return !a.Dusting() }, 2*time.Second, 5*time.Millisecond)
}

func TestAnimation_StopClears(t *testing.T) {
	a := NewAnimationWithDurations(time.Hour, time.Hour)
	a.Trigger()
	a.Stop()
	assert.False(t, a.Shaking())
	assert.False(t, a.Dusting())
}

func TestAnimation_DefaultDurations(t *testing.T) {
	a := NewAnimation()
	assert.Equal(t, 250*time.Millisecond, a.shakeFor)
	assert.Equal(t, 600*time.Millisecond, a.dustFor)
}

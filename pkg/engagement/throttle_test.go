package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/session"
)

func newTestThrottle(t *testing.T, cap int) *Throttle {
	t.Helper()
	store := session.NewMemoryProvider(time.Hour).ForSession("engagement-test")
	return NewThrottle(store, cap, logger.Nop())
}

func requestShow(t *testing.T, th *Throttle, trigger string, force bool) bool {
	t.Helper()
	allowed, err := th.RequestShow(context.Background(), trigger, force)
	require.NoError(t, err)
	return allowed
}

func TestThrottle_SessionCap(t *testing.T) {
	th := newTestThrottle(t, 3)

	assert.True(t, requestShow(t, th, "timer", false))
	assert.True(t, requestShow(t, th, "timer", false))
	assert.True(t, requestShow(t, th, "timer", false))
	assert.False(t, requestShow(t, th, "timer", false), "fourth show exceeds the cap")
}

func TestThrottle_ForceBypassesCap(t *testing.T) {
	th := newTestThrottle(t, 1)

	assert.True(t, requestShow(t, th, "timer", false))
	assert.False(t, requestShow(t, th, "timer", false))
	assert.True(t, requestShow(t, th, "cta_click", true), "forced show ignores the cap")
}

func TestThrottle_OneShotTrigger(t *testing.T) {
	t.Run("exit intent fires once even with counter capacity left", func(t *testing.T) {
		th := newTestThrottle(t, 3)

		assert.True(t, requestShow(t, th, TriggerExitIntent, false))
		assert.False(t, requestShow(t, th, TriggerExitIntent, false))

		// The general counter still has room for other categories
		assert.True(t, requestShow(t, th, "timer", false))
	})

	t.Run("force re-fires a used one-shot", func(t *testing.T) {
		th := newTestThrottle(t, 3)

		assert.True(t, requestShow(t, th, TriggerExitIntent, false))
		assert.True(t, requestShow(t, th, TriggerExitIntent, true))
	})
}

func TestThrottle_Dismiss(t *testing.T) {
	t.Run("permanent dismiss suppresses non-forced prompts", func(t *testing.T) {
		th := newTestThrottle(t, 3)
		ctx := context.Background()

		require.NoError(t, th.Dismiss(ctx, true))

		assert.False(t, requestShow(t, th, "timer", false))
		assert.True(t, requestShow(t, th, "cta_click", true), "explicit user action still shows")
	})

	t.Run("non-permanent dismiss changes nothing", func(t *testing.T) {
		th := newTestThrottle(t, 3)
		ctx := context.Background()

		require.NoError(t, th.Dismiss(ctx, false))
		assert.True(t, requestShow(t, th, "timer", false))
	})
}

func TestThrottle_StateAccounting(t *testing.T) {
	th := newTestThrottle(t, 3)
	ctx := context.Background()

	requestShow(t, th, "timer", false)
	requestShow(t, th, TriggerExitIntent, false)

	state, err := th.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, state.ShownCount)
	assert.Equal(t, TriggerExitIntent, state.LastTrigger)
	assert.True(t, state.UsedOneShots[TriggerExitIntent])
	assert.False(t, state.Dismissed)
}

func TestThrottle_CorruptStateResets(t *testing.T) {
	store := session.NewMemoryProvider(time.Hour).ForSession("corrupt-engagement")
	th := NewThrottle(store, 3, logger.Nop())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, stateKey, "][not json"))

	allowed, err := th.RequestShow(ctx, "timer", false)
	require.NoError(t, err)
	assert.True(t, allowed)
}

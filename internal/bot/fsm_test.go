package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManagerLifecycle(t *testing.T) {
	m := newStateManager()

	assert.Nil(t, m.Get(100), "fresh chat has no conversation")

	conv := m.Begin(100, stateShopName)
	require.NotNil(t, conv)
	assert.Equal(t, stateShopName, conv.State)
	assert.Same(t, conv, m.Get(100))

	// Chats are independent.
	assert.Nil(t, m.Get(200))

	// Begin replaces an in-flight conversation wholesale.
	conv.App.ShopName = "Цветы у дома"
	fresh := m.Begin(100, stateRemindDate)
	assert.Equal(t, stateRemindDate, fresh.State)
	assert.Empty(t, fresh.App.ShopName)

	m.Clear(100)
	assert.Nil(t, m.Get(100))

	// Clearing an absent chat is a no-op.
	m.Clear(300)
}

func TestParseID(t *testing.T) {
	id, ok := parseID("42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	for _, bad := range []string{"", "abc", "-1", "0", "1.5"} {
		_, ok := parseID(bad)
		assert.False(t, ok, "input %q", bad)
	}
}

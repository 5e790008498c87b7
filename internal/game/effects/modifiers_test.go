package effects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reversus/reversus-server/internal/game/catalog"
)

func TestStandAndDirection(t *testing.T) {
	m := NewModifiers()
	assert.Equal(t, 0, m.Score.Direction())

	cat, applied, err := m.Stand(catalog.EffectMenos)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, catalog.CategoryScore, cat)
	assert.Equal(t, -1, m.Score.Direction())

	_, _, err = m.Stand(catalog.EffectPula)
	assert.Error(t, err)
}

func TestReverseInvertsLiveModifier(t *testing.T) {
	m := NewModifiers()
	_, _, _ = m.Stand(catalog.EffectMais)
	require.NoError(t, m.Reverse(catalog.CategoryScore))
	assert.Equal(t, -1, m.Score.Direction())
	assert.Equal(t, -2, m.Score.Apply(2))

	require.NoError(t, m.Reverse(catalog.CategoryScore))
	assert.Equal(t, NewModifiers().Score.Polarity, m.Score.Polarity, "double reversal is identity")
	assert.Equal(t, 1, m.Score.Direction())

	// A later standing card keeps the live polarity.
	require.NoError(t, m.Reverse(catalog.CategoryMovement))
	_, _, _ = m.Stand(catalog.EffectSobe)
	assert.Equal(t, -1, m.Movement.Direction())
}

func TestLockBlocksReverse(t *testing.T) {
	m := NewModifiers()
	require.NoError(t, m.Reverse(catalog.CategoryScore))
	require.NoError(t, m.Lock(catalog.CategoryScore, catalog.EffectMais, 0))

	assert.Equal(t, 1, m.Score.Direction(), "pinned card resets polarity")
	assert.ErrorIs(t, m.Reverse(catalog.CategoryScore), ErrCategoryLocked)

	_, applied, err := m.Stand(catalog.EffectMenos)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, catalog.EffectMais, m.Score.Kind)

	flipped := m.ReverseAll()
	assert.Equal(t, []catalog.Category{catalog.CategoryMovement}, flipped)
	assert.Equal(t, 1, m.Score.Direction())

	m.Unlock(catalog.CategoryScore)
	assert.NoError(t, m.Reverse(catalog.CategoryScore))
}

func TestLockCurrentStateAndMismatch(t *testing.T) {
	m := NewModifiers()
	_, _, _ = m.Stand(catalog.EffectDesce)
	require.NoError(t, m.Reverse(catalog.CategoryMovement))
	require.NoError(t, m.Lock(catalog.CategoryMovement, catalog.EffectNone, 0))
	assert.Equal(t, 1, m.Movement.Direction(), "current state kept")
	assert.True(t, m.Movement.Locked)

	assert.Error(t, m.Lock(catalog.CategoryScore, catalog.EffectSobe, 0))
}

func TestExpireLocks(t *testing.T) {
	m := NewModifiers()
	require.NoError(t, m.Lock(catalog.CategoryScore, catalog.EffectNone, 5))
	require.NoError(t, m.Lock(catalog.CategoryMovement, catalog.EffectNone, 0))

	assert.Empty(t, m.ExpireLocks(4))
	assert.Equal(t, []catalog.Category{catalog.CategoryScore}, m.ExpireLocks(5))
	assert.False(t, m.Score.Locked)
	assert.True(t, m.Movement.Locked, "lock without deadline stays")
}

func TestModifiersJSON(t *testing.T) {
	m := NewModifiers()
	_, _, _ = m.Stand(catalog.EffectSobe)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"Sobe"`)

	var back Modifiers
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

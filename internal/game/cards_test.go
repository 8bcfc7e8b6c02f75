package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/memoryforbots/internal/randutil"
)

func TestDefaultPattern(t *testing.T) {
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3, 4, 4}, DefaultPattern(4))
	assert.Equal(t, []int{1, 1}, DefaultPattern(1))
	assert.Empty(t, DefaultPattern(0))
	assert.Empty(t, DefaultPattern(-1))
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern([]int{7, 3, 3, 7}))
	assert.Error(t, ValidatePattern(nil))
	assert.Error(t, ValidatePattern([]int{1, 1, 2}))
	assert.Error(t, ValidatePattern([]int{1, 1, 1, 1}))
}

func TestDeckOperations(t *testing.T) {
	d, err := NewDeck([]int{1, 1, 2, 2})
	require.NoError(t, err)

	assert.Equal(t, 2, d.Pairs())
	assert.True(t, d.Valid(0))
	assert.True(t, d.Valid(3))
	assert.False(t, d.Valid(4))
	assert.False(t, d.Valid(-1))

	clone := d.Clone()
	d[0].Matched = true
	d[1].Matched = true
	assert.False(t, clone[0].Matched, "clone must not alias")
	assert.Equal(t, []int{2, 3}, d.Unmatched())
	assert.Equal(t, "[0:1* 1:1* 2:2 3:2]", d.String())

	d.Reset()
	assert.Equal(t, []int{0, 1, 2, 3}, d.Unmatched())
}

func TestDeckShuffleKeepsIDs(t *testing.T) {
	d, err := NewDeck(DefaultPattern(5))
	require.NoError(t, err)

	d.Shuffle(randutil.New(3))
	for i, c := range d {
		assert.Equal(t, i, c.ID)
	}
	assert.NoError(t, ValidatePattern(pairIDs(d)))
}

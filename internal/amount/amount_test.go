package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFractionReduces(t *testing.T) {
	a := FromFraction(4, 8)
	assert.Equal(t, "1/2", a.String())
}

func TestFromIntCanonicalForm(t *testing.T) {
	a := FromInt(7)
	assert.Equal(t, "7", a.String())
}

func TestFromIntNegativePanics(t *testing.T) {
	assert.Panics(t, func() { FromInt(-1) })
}

func TestAddSub(t *testing.T) {
	a := FromFraction(1, 2)
	b := FromFraction(1, 3)
	sum := Add(a, b)
	assert.Equal(t, "5/6", sum.String())

	back := Sub(sum, b)
	assert.Equal(t, 0, Cmp(back, a))
}

func TestSubNegativeResultPanics(t *testing.T) {
	a := FromInt(1)
	b := FromInt(2)
	assert.Panics(t, func() { Sub(a, b) })
}

func TestCmp(t *testing.T) {
	assert.Equal(t, -1, Cmp(FromInt(1), FromInt(2)))
	assert.Equal(t, 0, Cmp(FromFraction(2, 4), FromFraction(1, 2)))
	assert.Equal(t, 1, Cmp(FromInt(3), FromInt(2)))
}

func TestIsZeroIsPositive(t *testing.T) {
	assert.True(t, Zero().IsZero())
	assert.False(t, Zero().IsPositive())
	assert.True(t, FromInt(1).IsPositive())
}

func TestParseRoundTrip(t *testing.T) {
	values := []Amount{Zero(), FromInt(42), FromFraction(1, 3), FromFraction(100, 7)}
	for _, v := range values {
		parsed, err := Parse(v.String())
		require.NoError(t, err)
		assert.Equal(t, 0, Cmp(v, parsed))
		assert.Equal(t, v.String(), parsed.String())
	}
}

func TestParseRejectsNonCanonical(t *testing.T) {
	_, err := Parse("2/4")
	assert.Error(t, err)
}

func TestParseRejectsNegative(t *testing.T) {
	_, err := Parse("-1")
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-number")
	assert.Error(t, err)
}

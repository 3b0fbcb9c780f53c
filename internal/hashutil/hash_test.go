package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumIsDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	assert.Equal(t, a, b)
}

func TestSumDiffersOnDifferentInput(t *testing.T) {
	assert.NotEqual(t, Sum([]byte("hello")), Sum([]byte("world")))
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, Sum([]byte("x")).IsZero())
}

func TestCheckDifficultyMaskZeroAlwaysPasses(t *testing.T) {
	h := Sum([]byte("anything"))
	assert.True(t, CheckDifficulty(h, 0))
}

func TestCheckDifficultyFindsSatisfyingInput(t *testing.T) {
	// DifficultyTest is weak enough that a handful of attempts find a match.
	found := false
	for i := 0; i < 1<<20 && !found; i++ {
		h := Sum([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		if CheckDifficulty(h, DifficultyTest) {
			found = true
		}
	}
	assert.True(t, found, "expected to find a hash satisfying DifficultyTest within the search budget")
}

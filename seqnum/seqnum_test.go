package seqnum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAware(t *testing.T) {
	for a := 0; a <= 65535; a += 257 {
		av := T(a)
		assert.True(t, Less(av, Next(av)), "a=%d", a)
		assert.True(t, Less(T(av+32767), av), "a=%d", a)
	}
}

func TestLessBasic(t *testing.T) {
	assert.True(t, Less(1, 2))
	assert.False(t, Less(2, 1))
	assert.False(t, Less(5, 5))
}

func TestLessWraparound(t *testing.T) {
	// 65535 is "older" than 0 because 0-65535 wraps to 1, which is < 32768.
	assert.True(t, Less(65535, 0))
	assert.False(t, Less(0, 65535))
}

func TestLessOrEqual(t *testing.T) {
	assert.True(t, LessOrEqual(3, 3))
	assert.True(t, LessOrEqual(3, 4))
	assert.False(t, LessOrEqual(4, 3))
}

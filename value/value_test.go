package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualIgnoresTimestamp(t *testing.T) {
	a := NewDouble(1.5, 100)
	b := NewDouble(1.5, 200)
	assert.True(t, Equal(a, b))
}

func TestEqualDifferentType(t *testing.T) {
	a := NewDouble(0, 1)
	b := NewBoolean(false, 1)
	assert.False(t, Equal(a, b))
}

func TestEqualNil(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, NewBoolean(true, 0)))
}

func TestArrayEquality(t *testing.T) {
	a := NewDoubleArray([]float64{1, 2, 3}, 0)
	b := NewDoubleArray([]float64{1, 2, 3}, 0)
	c := NewDoubleArray([]float64{1, 2}, 0)
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestTypeBitmask(t *testing.T) {
	seen := map[Type]bool{}
	for _, ty := range []Type{Boolean, Double, String, Raw, BooleanArray, DoubleArray, StringArray, RPC} {
		assert.False(t, seen[ty], "duplicate bit for %v", ty)
		seen[ty] = true
	}
}

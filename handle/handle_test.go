package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	h := Make(RPCCall, 3, 12345)
	assert.True(t, h.Valid())
	assert.Equal(t, RPCCall, h.Type())
	assert.Equal(t, 3, h.Inst())
	assert.Equal(t, 12345, h.Index())
}

func TestInvalid(t *testing.T) {
	assert.False(t, Invalid.Valid())
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfEven(t *testing.T) {
	assert.Equal(t, 2, RoundInt(2.5))
	assert.Equal(t, 4, RoundInt(3.5))
	assert.Equal(t, 3, RoundInt(2.51))
	assert.Equal(t, -2, RoundInt(-2.5))
	assert.Equal(t, 0, RoundInt(0.49))

	assert.InDelta(t, 3.33, Round(10.0/3.0, 2), 1e-12)
	assert.InDelta(t, 0.12, Round(0.125, 2), 1e-12)
	assert.InDelta(t, -1.57, Round(-1.5678, 2), 1e-12)
}

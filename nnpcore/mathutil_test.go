package nnpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUpPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{
		1:        1,
		2:        2,
		3:        4,
		4:        4,
		5:        8,
		17:       32,
		128:      128,
		129:      256,
		1 << 20:  1 << 20,
		(1 << 20) + 1: 1 << 21,
	}

	for in, want := range cases {
		assert.Equalf(t, want, RoundUpPowerOfTwo(in), "RoundUpPowerOfTwo(%d)", in)
	}
}

func TestCeilLog2IsInverseOnPowersOfTwo(t *testing.T) {
	for shift := 0; shift < 31; shift++ {
		v := uint32(1) << uint(shift)
		assert.Equal(t, shift, CeilLog2(v))
		assert.Equal(t, v, RoundUpPowerOfTwo(v))
	}
}

func TestDivideRoundUp(t *testing.T) {
	assert.Equal(t, 1, DivideRoundUp(1, 4096))
	assert.Equal(t, 1, DivideRoundUp(4096, 4096))
	assert.Equal(t, 2, DivideRoundUp(4097, 4096))
	assert.Equal(t, 0, DivideRoundUp(0, 4096))
}

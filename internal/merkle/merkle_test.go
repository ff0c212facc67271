package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func leaf(b byte) [32]byte {
	var out [32]byte
	out[31] = b
	return out
}

func TestRoot_Empty(t *testing.T) {
	assert.Equal(t, Zero, Root(nil))
}

func TestRoot_Single(t *testing.T) {
	l := leaf(1)
	assert.Equal(t, l, Root([][32]byte{l}))
}

func TestRoot_OrderIndependent(t *testing.T) {
	a, b, c := leaf(1), leaf(2), leaf(3)
	r1 := Root([][32]byte{a, b, c})
	r2 := Root([][32]byte{c, a, b})
	assert.Equal(t, r1, r2)
}

func TestRoot_ChangesWithMembership(t *testing.T) {
	a, b := leaf(1), leaf(2)
	r1 := Root([][32]byte{a})
	r2 := Root([][32]byte{a, b})
	assert.NotEqual(t, r1, r2)
}

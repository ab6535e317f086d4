package quaternion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRotationVector_ZeroIsIdentity(t *testing.T) {
	assert.Equal(t, Identity, FromRotationVector(0, 0, 0))
}

func TestMul_WithIdentityIsNoop(t *testing.T) {
	axesOffset := FromRotationVector(-math.Pi/2, 0, 0)
	got := axesOffset.Mul(Identity)

	assert.InDelta(t, axesOffset.W, got.W, 1e-9)
	assert.InDelta(t, axesOffset.X, got.X, 1e-9)
	assert.InDelta(t, axesOffset.Y, got.Y, 1e-9)
	assert.InDelta(t, axesOffset.Z, got.Z, 1e-9)
}

func TestFromRotationVector_HalfPiAboutX(t *testing.T) {
	q := FromRotationVector(-math.Pi/2, 0, 0)

	assert.InDelta(t, math.Cos(math.Pi/4), q.W, 1e-9)
	assert.InDelta(t, -math.Sin(math.Pi/4), q.X, 1e-9)
	assert.InDelta(t, 0, q.Y, 1e-9)
	assert.InDelta(t, 0, q.Z, 1e-9)
}

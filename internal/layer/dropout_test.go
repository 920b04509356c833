package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDropoutForwardTraining(t *testing.T) {
	d := NewDropout(0.5, WithSeed(42))
	x := ones(5, 100)

	y, cache, err := d.Forward(x, true)
	require.NoError(t, err)
	require.NotNil(t, cache)

	// One mask per column, shared by every row.
	kept := 0
	for j := 0; j < 100; j++ {
		v := y.At(0, j)
		for i := 1; i < 5; i++ {
			assert.Equal(t, v, y.At(i, j), "column %d", j)
		}
		switch v {
		case 0:
		case 2:
			kept++
		default:
			t.Fatalf("column %d: got %v, want 0 or 2", j, v)
		}
	}
	if kept < 30 || kept > 70 {
		t.Errorf("expected ~50%% kept columns, got %d/100", kept)
	}
}

func TestDropoutForwardInference(t *testing.T) {
	d := NewDropout(0.5, WithSeed(42))
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	y, cache, err := d.Forward(x, false)
	require.NoError(t, err)
	assert.Nil(t, cache)
	assert.True(t, mat.Equal(x, y))
}

func TestDropoutBackwardUsesMask(t *testing.T) {
	d := NewDropout(0.25, WithSeed(3))
	x := ones(3, 20)
	y, cache, err := d.Forward(x, true)
	require.NoError(t, err)

	grad := ones(3, 20)
	dx, grads, err := d.Backward(cache, grad)
	require.NoError(t, err)
	assert.Nil(t, grads.Weight)
	assert.True(t, mat.Equal(y, dx))
}

func TestDropoutZeroRate(t *testing.T) {
	d := NewDropout(0, WithSeed(1))
	x := mat.NewDense(2, 2, []float64{1, -2, 3, -4})
	y, _, err := d.Forward(x, true)
	require.NoError(t, err)
	assert.True(t, mat.Equal(x, y))
}

func TestDropoutInvalidRate(t *testing.T) {
	assert.Panics(t, func() { NewDropout(1) })
	assert.Panics(t, func() { NewDropout(-0.1) })
}

func TestDropoutCloneReplaysMask(t *testing.T) {
	d := NewDropout(0.5, WithSeed(8))
	c := d.Clone()
	x := ones(2, 50)

	y1, _, err := d.Forward(x, true)
	require.NoError(t, err)
	y2, _, err := c.Forward(x, true)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y1, y2))
	assert.Equal(t, 0.5, c.(*Dropout).Rate())
}

func TestDropoutReseed(t *testing.T) {
	x := ones(1, 64)
	d := NewDropout(0.5, WithSeed(8))
	c := d.Clone().(*Dropout)
	c.Reseed(9)

	y1, _, err := d.Forward(x, true)
	require.NoError(t, err)
	y2, _, err := c.Forward(x, true)
	require.NoError(t, err)
	assert.False(t, mat.Equal(y1, y2))

	// The reseeded stream is reproducible and survives Clone.
	again := NewDropout(0.5, WithSeed(9))
	y3, _, err := again.Forward(x, true)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y2, y3))

	c.Reseed(9)
	y4, _, err := c.Clone().Forward(x, true)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y2, y4))
}

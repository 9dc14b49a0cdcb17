package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatencyWindow(t *testing.T) {
	var w LatencyWindow
	assert.Equal(t, 0.0, w.Mean())
	assert.Empty(t, w.Samples())

	w.Push(10)
	w.Push(20)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 15.0, w.Mean())
	assert.Equal(t, []float64{10, 20}, w.Samples())
}

func TestLatencyWindow_EvictsOldest(t *testing.T) {
	var w LatencyWindow
	for i := 1; i <= LatencySamples+5; i++ {
		w.Push(float64(i))
	}
	assert.Equal(t, LatencySamples, w.Len())

	samples := w.Samples()
	assert.Equal(t, 6.0, samples[0])
	assert.Equal(t, float64(LatencySamples+5), samples[len(samples)-1])
	// 6..25 的平均值
	assert.InDelta(t, 15.5, w.Mean(), 1e-9)
}

func TestLatencyWindow_NoDriftAfterLargeSamples(t *testing.T) {
	var w LatencyWindow
	for i := 0; i < LatencySamples; i++ {
		w.Push(1e16)
	}
	// 大样本全部淘汰后，均值只由小样本决定
	for i := 0; i < LatencySamples; i++ {
		w.Push(1)
	}
	assert.Equal(t, 1.0, w.Mean())

	for i := 0; i < 1000*LatencySamples; i++ {
		w.Push(0.1)
	}
	assert.InDelta(t, 0.1, w.Mean(), 1e-12)
}

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEMA_Empty(t *testing.T) {
	t.Parallel()

	ema := NewEMA(0.3)

	assert.Zero(t, ema.Value())
}

func TestEMA_Update(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		alpha float64
		obs   []float64
		want  float64
	}{
		{name: "first seeds", alpha: 0.3, obs: []float64{10}, want: 10},
		{name: "smooths", alpha: 0.3, obs: []float64{10, 20}, want: 13},
		{name: "alpha one tracks", alpha: 1, obs: []float64{10, 20}, want: 20},
		{name: "alpha above one clamped", alpha: 4, obs: []float64{10, 20}, want: 20},
		{name: "alpha zero holds", alpha: 0, obs: []float64{10, 20, 30}, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ema := NewEMA(tt.alpha)

			var got float64
			for _, v := range tt.obs {
				got = ema.Update(v)
			}

			assert.InDelta(t, tt.want, got, 1e-9)
			assert.InDelta(t, got, ema.Value(), 1e-12)
		})
	}
}

func TestEMA_Converges(t *testing.T) {
	t.Parallel()

	ema := NewEMA(0.3)
	ema.Update(1000)

	for range 100 {
		ema.Update(50)
	}

	assert.InDelta(t, 50, ema.Value(), 1e-6)
}

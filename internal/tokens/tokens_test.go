package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"twelve chars", 3},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Estimator{}.Count(tt.text))
		})
	}
}

func TestTiktokenCounter(t *testing.T) {
	c := NewTiktokenCounter()

	assert.Equal(t, 0, c.Count(""))
	assert.Positive(t, c.Count("Estimate the calories of this meal."))

	short := c.Count("pasta")
	long := c.Count("pasta with tomato sauce, basil, parmesan and a side salad")
	assert.Less(t, short, long)
}

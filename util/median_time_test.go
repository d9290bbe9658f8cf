package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcPastMedianTime(t *testing.T) {
	tests := []struct {
		name       string
		timestamps []int64
		want       int64
	}{
		{"single", []int64{100}, 100},
		{"odd count", []int64{5, 1, 3}, 3},
		{"unsorted full window", []int64{11, 2, 9, 4, 7, 6, 5, 8, 3, 10, 1}, 6},
		// even counts take the upper of the two middle elements, matching
		// the consensus rules
		{"even count", []int64{1, 2, 3, 4}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalcPastMedianTime(tt.timestamps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalcPastMedianTimeBounds(t *testing.T) {
	_, err := CalcPastMedianTime(nil)
	require.Error(t, err)

	_, err = CalcPastMedianTime(make([]int64, MedianTimeBlocks+1))
	require.Error(t, err)
}

func TestCalcPastMedianTimeDoesNotMutateInput(t *testing.T) {
	in := []int64{3, 1, 2}
	_, err := CalcPastMedianTime(in)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, in)
}

func TestIsLockTimeSatisfied(t *testing.T) {
	// height-based
	assert.True(t, IsLockTimeSatisfied(10, 11, 0))
	assert.False(t, IsLockTimeSatisfied(11, 11, 0))

	// time-based
	assert.True(t, IsLockTimeSatisfied(LockTimeThreshold+100, 0, LockTimeThreshold+101))
	assert.False(t, IsLockTimeSatisfied(LockTimeThreshold+100, 0, LockTimeThreshold+100))
}

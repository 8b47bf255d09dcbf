package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricePoint_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		point    PricePoint
		expected string
	}{
		{
			name: "before any window is full",
			point: PricePoint{
				Date:             time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				Price:            101.37,
				FilteredEstimate: 101.24,
				Volume:           7321,
			},
			expected: `{"date":"2023-01-01","price":101.37,"filteredEstimate":101.24,"volume":7321}`,
		},
		{
			name: "with all statistics",
			point: PricePoint{
				Date:             time.Date(2023, 2, 19, 0, 0, 0, 0, time.UTC),
				Price:            104.5,
				FilteredEstimate: 104.1,
				ShortMA:          Float(103.2),
				LongMA:           Float(102),
				UpperBand:        Float(106.9),
				LowerBand:        Float(99.5),
				Volume:           5000,
			},
			expected: `{"date":"2023-02-19","price":104.5,"filteredEstimate":104.1,"shortMA":103.2,"longMA":102,"upperBand":106.9,"lowerBand":99.5,"volume":5000}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.point)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))

			var decoded PricePoint
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.point, decoded)
		})
	}
}

func TestPricePoint_UnmarshalInvalidDate(t *testing.T) {
	var p PricePoint
	err := json.Unmarshal([]byte(`{"date":"01/02/2023","price":1}`), &p)
	assert.Error(t, err)
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, expected float64
	}{
		{in: 100.005, expected: 100},
		{in: 1.005, expected: 1},
		{in: 2.675, expected: 2.67},
		{in: 0.125, expected: 0.13},
		{in: -0.125, expected: -0.13},
		{in: 99.994, expected: 99.99},
		{in: -2.345, expected: -2.35},
		{in: 0.1 + 0.2, expected: 0.3},
		{in: 42, expected: 42},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

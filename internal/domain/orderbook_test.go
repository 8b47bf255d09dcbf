package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBookSnapshot_SpreadAndMaxSize(t *testing.T) {
	tests := []struct {
		name           string
		snapshot       OrderBookSnapshot
		expectedSpread float64
		expectedMax    int
	}{
		{
			name:     "empty book",
			snapshot: OrderBookSnapshot{},
		},
		{
			name: "one tick each side",
			snapshot: OrderBookSnapshot{
				Bids: []OrderBookLevel{{Rank: 1, Price: 99.95, Size: 120}, {Rank: 2, Price: 99.9, Size: 580}},
				Asks: []OrderBookLevel{{Rank: 1, Price: 100.05, Size: 430}},
			},
			expectedSpread: 0.1,
			expectedMax:    580,
		},
		{
			name: "largest size on the ask side",
			snapshot: OrderBookSnapshot{
				Bids: []OrderBookLevel{{Rank: 1, Price: 10.2, Size: 100}},
				Asks: []OrderBookLevel{{Rank: 1, Price: 10.35, Size: 599}},
			},
			expectedSpread: 0.15,
			expectedMax:    599,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedSpread, tt.snapshot.Spread())
			assert.Equal(t, tt.expectedMax, tt.snapshot.MaxSize())
		})
	}
}

func TestSide_IsValid(t *testing.T) {
	assert.True(t, SideBid.IsValid())
	assert.True(t, SideAsk.IsValid())
	assert.False(t, Side("mid").IsValid())
	assert.Equal(t, "ask", SideAsk.String())
}

package domain

import "time"

// BookDepth number of levels generated on each side of the book.
const BookDepth = 10

// Side of the order book.
type Side string

const (
	// SideBid buy interest below the mid price.
	SideBid Side = "bid"
	// SideAsk sell interest above the mid price.
	SideAsk Side = "ask"
)

// String returns the string representation.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideBid || s == SideAsk
}

// OrderBookLevel single price level of a synthetic book.
type OrderBookLevel struct {
	// Rank distance from the mid price, 1 is the closest level.
	Rank  int     `json:"rank"`
	Price float64 `json:"price"`
	Size  int     `json:"size"`
	// Total cumulative size from rank 1 up to and including this level.
	Total int  `json:"total"`
	Side  Side `json:"side"`
}

// OrderBookSnapshot immutable view of the book at one tick.
type OrderBookSnapshot struct {
	Sequence  uint64           `json:"sequence"`
	Timestamp time.Time        `json:"ts"`
	MidPrice  float64          `json:"midPrice"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
}

// Spread returns the distance between the best ask and the best bid.
func (s OrderBookSnapshot) Spread() float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return Round2(s.Asks[0].Price - s.Bids[0].Price)
}

// MaxSize returns the largest level size on either side.
func (s OrderBookSnapshot) MaxSize() int {
	maxSize := 0
	for _, level := range s.Bids {
		if level.Size > maxSize {
			maxSize = level.Size
		}
	}
	for _, level := range s.Asks {
		if level.Size > maxSize {
			maxSize = level.Size
		}
	}
	return maxSize
}

// Package domain defines core data structures shared by the generators, the tutor and the web layer.
package domain

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-day layout used when a PricePoint is serialized.
const DateLayout = "2006-01-02"

// PricePoint single trading day of the enriched synthetic series.
type PricePoint struct {
	Date             time.Time
	Price            float64
	FilteredEstimate float64
	// ShortMA 20-day simple moving average, nil until 20 points exist.
	ShortMA *float64
	// LongMA 50-day simple moving average, nil until 50 points exist.
	LongMA    *float64
	UpperBand *float64
	LowerBand *float64
	// Volume is decorative and never used in a computation.
	Volume int
}

// HasBands reports whether the Bollinger band fields are populated.
func (p PricePoint) HasBands() bool {
	return p.ShortMA != nil && p.UpperBand != nil && p.LowerBand != nil
}

type pricePointJSON struct {
	Date             string   `json:"date"`
	Price            float64  `json:"price"`
	FilteredEstimate float64  `json:"filteredEstimate"`
	ShortMA          *float64 `json:"shortMA,omitempty"`
	LongMA           *float64 `json:"longMA,omitempty"`
	UpperBand        *float64 `json:"upperBand,omitempty"`
	LowerBand        *float64 `json:"lowerBand,omitempty"`
	Volume           int      `json:"volume"`
}

// MarshalJSON writes the date as a plain calendar day.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(pricePointJSON{
		Date:             p.Date.Format(DateLayout),
		Price:            p.Price,
		FilteredEstimate: p.FilteredEstimate,
		ShortMA:          p.ShortMA,
		LongMA:           p.LongMA,
		UpperBand:        p.UpperBand,
		LowerBand:        p.LowerBand,
		Volume:           p.Volume,
	})
}

// UnmarshalJSON parses the calendar-day representation written by MarshalJSON.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var raw pricePointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	date, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return err
	}

	*p = PricePoint{
		Date:             date,
		Price:            raw.Price,
		FilteredEstimate: raw.FilteredEstimate,
		ShortMA:          raw.ShortMA,
		LongMA:           raw.LongMA,
		UpperBand:        raw.UpperBand,
		LowerBand:        raw.LowerBand,
		Volume:           raw.Volume,
	}

	return nil
}

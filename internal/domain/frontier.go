package domain

// FrontierPoint synthetic portfolio in risk/return space.
type FrontierPoint struct {
	// Risk annualized volatility in percent, always positive.
	Risk float64 `json:"risk"`
	// Return expected return in percent, may be negative.
	Return float64 `json:"return"`
	// Ratio return per unit of risk (Sharpe-like, zero risk-free rate).
	Ratio float64 `json:"ratio"`
}

// Package filter implements the scalar Kalman-style estimator used to smooth price noise.
package filter

const (
	// InitialEstimate matches the base price of the walk.
	InitialEstimate = 100.0
	// InitialCovariance starting estimate covariance.
	InitialCovariance = 10.0
	// ProcessNoise covariance added on each prediction.
	ProcessNoise = 0.1
	// MeasurementNoise covariance of every observation.
	MeasurementNoise = 1.0
)

// CovarianceMode selects how the estimate covariance evolves.
type CovarianceMode string

const (
	// CovarianceFrozen keeps the covariance at its initial value, giving a constant gain.
	CovarianceFrozen CovarianceMode = "frozen"
	// CovarianceAdaptive applies the textbook update (1-gain)*predicted, so the gain converges.
	CovarianceAdaptive CovarianceMode = "adaptive"
)

// IsValid checks if the CovarianceMode value is valid.
func (m CovarianceMode) IsValid() bool {
	return m == CovarianceFrozen || m == CovarianceAdaptive
}

// State snapshot of the filter internals after the last update.
type State struct {
	Estimate   float64
	Covariance float64
	Gain       float64
	Steps      int
}

// Filter recursive one-dimensional estimator. Not safe for concurrent use;
// each generation run owns its own Filter.
type Filter struct {
	estimate         float64
	covariance       float64
	processNoise     float64
	measurementNoise float64
	mode             CovarianceMode
	gain             float64
	steps            int
}

// Option defines a function to configure the Filter.
type Option func(*Filter)

// WithMode sets the covariance mode. Unknown modes are ignored.
func WithMode(mode CovarianceMode) Option {
	return func(f *Filter) {
		if mode.IsValid() {
			f.mode = mode
		}
	}
}

// WithInitialEstimate overrides the starting estimate.
func WithInitialEstimate(estimate float64) Option {
	return func(f *Filter) {
		f.estimate = estimate
	}
}

// New creates a Filter in its initial state.
func New(opts ...Option) *Filter {
	f := &Filter{
		estimate:         InitialEstimate,
		covariance:       InitialCovariance,
		processNoise:     ProcessNoise,
		measurementNoise: MeasurementNoise,
		mode:             CovarianceFrozen,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Update folds measurement into the estimate and returns the new estimate.
func (f *Filter) Update(measurement float64) float64 {
	predicted := f.covariance + f.processNoise
	f.gain = predicted / (predicted + f.measurementNoise)
	f.estimate += f.gain * (measurement - f.estimate)

	if f.mode == CovarianceAdaptive {
		f.covariance = (1 - f.gain) * predicted
	}
	f.steps++

	return f.estimate
}

// Estimate returns the current estimate.
func (f *Filter) Estimate() float64 {
	return f.estimate
}

// State returns a copy of the filter internals.
func (f *Filter) State() State {
	return State{
		Estimate:   f.estimate,
		Covariance: f.covariance,
		Gain:       f.gain,
		Steps:      f.steps,
	}
}

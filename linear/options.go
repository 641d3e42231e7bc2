package linear

// Option configures a linear estimator at construction time.
type Option func(fitIntercept *bool)

// WithFitIntercept controls whether an intercept term is estimated.
// Default: true.
func WithFitIntercept(fit bool) Option {
	return func(fitIntercept *bool) {
		*fitIntercept = fit
	}
}

package aggregate

// Option applies a configuration option to the YearlyAggregator.
type Option func(*YearlyAggregator)

// WithMinYear sets the exclusive lower bound for aggregated years.
func WithMinYear(year int) Option {
	return func(a *YearlyAggregator) {
		a.minYear = year
	}
}

// WithDateLayouts replaces the accepted date layouts, tried in order.
func WithDateLayouts(layouts ...string) Option {
	return func(a *YearlyAggregator) {
		if len(layouts) > 0 {
			a.layouts = append([]string(nil), layouts...)
		}
	}
}

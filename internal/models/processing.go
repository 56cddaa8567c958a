package models

// OutlierRemovalConfig controls the outlier rejection stage.
type OutlierRemovalConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Method  string `json:"method" mapstructure:"method"` // "3sigma"
}

// ResampleConfig controls the time-bucket resampling stage.
// IntervalSeconds is the fixed window width; the stage only runs when it
// is positive.
type ResampleConfig struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	IntervalSeconds int    `json:"intervalSeconds" mapstructure:"interval_seconds"`
	Method          string `json:"method" mapstructure:"method"` // "mean"
}

// SmoothingConfig controls the moving-average smoothing stage.
type SmoothingConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Method  string `json:"method" mapstructure:"method"` // "moving_avg"
	Window  int    `json:"window" mapstructure:"window"`
}

// ProcessingConfig is the per-request processing pipeline configuration.
// It is immutable for the duration of a request and every field
// participates in the cache-key processing signature.
type ProcessingConfig struct {
	OutlierRemoval OutlierRemovalConfig `json:"outlierRemoval" mapstructure:"outlier_removal"`
	Resample       ResampleConfig       `json:"resample" mapstructure:"resample"`
	Smoothing      SmoothingConfig      `json:"smoothing" mapstructure:"smoothing"`
}

// DefaultProcessingConfig returns a configuration with every stage
// disabled and the conventional method names and sizes filled in.
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		OutlierRemoval: OutlierRemovalConfig{Method: "3sigma"},
		Resample:       ResampleConfig{IntervalSeconds: 60, Method: "mean"},
		Smoothing:      SmoothingConfig{Method: "moving_avg", Window: 5},
	}
}

// WithOutlierRemoval enables outlier rejection with the given method.
func (c ProcessingConfig) WithOutlierRemoval(method string) ProcessingConfig {
	c.OutlierRemoval.Enabled = true
	c.OutlierRemoval.Method = method
	return c
}

// WithResample enables resampling with the given interval and method.
func (c ProcessingConfig) WithResample(intervalSeconds int, method string) ProcessingConfig {
	c.Resample.Enabled = true
	c.Resample.IntervalSeconds = intervalSeconds
	c.Resample.Method = method
	return c
}

// WithSmoothing enables smoothing with the given window and method.
func (c ProcessingConfig) WithSmoothing(window int, method string) ProcessingConfig {
	c.Smoothing.Enabled = true
	c.Smoothing.Method = method
	c.Smoothing.Window = window
	return c
}

// HasAnyEnabled reports whether any pipeline stage is switched on.
func (c ProcessingConfig) HasAnyEnabled() bool {
	return c.OutlierRemoval.Enabled || c.Resample.Enabled || c.Smoothing.Enabled
}

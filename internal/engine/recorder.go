package engine

// Recorder receives engine events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ProviderCall(provider, outcome string)
	ProviderDisabled(provider string)
	RecordsFetched(provider string, n int)
	FanoutDuration(seconds float64)
	GenerationIterations(n int)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) ProviderCall(string, string)  {}
func (NopRecorder) ProviderDisabled(string)      {}
func (NopRecorder) RecordsFetched(string, int)   {}
func (NopRecorder) FanoutDuration(float64)       {}
func (NopRecorder) GenerationIterations(int)     {}

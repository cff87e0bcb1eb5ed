package insight

import "sales-insights-go/internal/modelcache"

// Capability is the shared contract of the three insight models: train once
// per dataset shape, score cheaply afterwards. The engine drives all three
// through the same cache orchestration; no capability owns its own caching
// or timing logic.
type Capability interface {
	Kind() modelcache.Kind
	Method() string

	// Samples reports how many training units the dataset offers for this
	// capability (days for the time-series models, customers for
	// segmentation). MinSamples is the training gate.
	Samples(ds Dataset) int
	MinSamples() int

	Train(ds Dataset) (modelcache.Artifact, error)
	Score(artifact modelcache.Artifact, ds Dataset) (any, error)
}

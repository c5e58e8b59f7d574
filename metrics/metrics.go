// Package metrics records negotiation, payment and gateway events.
package metrics

import "time"

// Recorder receives event counts and operation latencies. The "network"
// label, when present, carries the chain id the event happened on.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder drops everything. It is the default when metrics are disabled.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

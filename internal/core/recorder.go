package core

import "time"

// Recorder receives run measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	RunFinished(phase Phase, d time.Duration)
	RowProcessed()
	Warning(kind WarningKind)
	ZipLookup(outcome string, d time.Duration)
	HashedCells(n int)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RunFinished(Phase, time.Duration) {}
func (NopRecorder) RowProcessed()                    {}
func (NopRecorder) Warning(WarningKind)              {}
func (NopRecorder) ZipLookup(string, time.Duration)  {}
func (NopRecorder) HashedCells(int)                  {}

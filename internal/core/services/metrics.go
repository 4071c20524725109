package services

import (
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
)

// NopMetrics discards every measurement. Used when instrumentation is disabled.
type NopMetrics struct{}

var _ ports.MetricsRecorder = NopMetrics{}

func (NopMetrics) RoomCreated()                   {}
func (NopMetrics) RoomDeleted()                   {}
func (NopMetrics) PlayerJoined()                  {}
func (NopMetrics) GameStarted()                   {}
func (NopMetrics) ScoreSubmitted()                {}
func (NopMetrics) RoomCompleted(time.Duration)    {}
func (NopMetrics) SignalPosted(domain.SignalKind) {}
func (NopMetrics) PoseFrameRelayed()              {}
func (NopMetrics) ConnectionOpened()              {}
func (NopMetrics) ConnectionClosed()              {}

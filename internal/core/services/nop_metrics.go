package services

import "callplayer/internal/core/domain"

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordStart(domain.StreamType) {}
func (NopMetrics) RecordEnqueue(domain.StreamType) {}
func (NopMetrics) RecordAdvance(domain.AdvanceOutcome) {}
func (NopMetrics) RecordTeardown() {}
func (NopMetrics) RecordTransportError(string) {}
func (NopMetrics) RecordEvent(domain.EventKind) {}
func (NopMetrics) RecordResolution(bool, error) {}
func (NopMetrics) SetQueueLength(domain.ChatID, int) {}
func (NopMetrics) RecordCommand(string, error) {}

package events

import (
	"go.uber.org/zap"
)

// LogSink writes events to a zap logger as structured entries. Scheduled
// attempts log at debug, successes and circuit closes at info, failures
// and half-open trials at warn, circuit opens at error.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging sink backed by logger
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink
func (s *LogSink) Emit(e Event) {
	switch e.Type {
	case AttemptScheduled:
		s.logger.Debug("retry attempt scheduled",
			zap.String("service", e.Service),
			zap.String("operation_id", e.OperationID),
			zap.Int("attempt", e.Attempt),
			zap.Duration("delay", e.Delay),
			zap.Error(e.Err),
		)
	case OperationSucceeded:
		s.logger.Info("operation succeeded",
			zap.String("service", e.Service),
			zap.String("operation_id", e.OperationID),
			zap.Int("attempts", e.Attempt),
			zap.Duration("duration", e.Duration),
		)
	case OperationFailed:
		s.logger.Warn("operation failed",
			zap.String("service", e.Service),
			zap.String("operation_id", e.OperationID),
			zap.Int("attempts", e.Attempt),
			zap.Duration("duration", e.Duration),
			zap.Error(e.Err),
		)
	case OperationRejected:
		s.logger.Warn("operation rejected by open circuit",
			zap.String("service", e.Service),
			zap.Error(e.Err),
		)
	case CircuitOpened:
		s.logger.Error("circuit opened",
			zap.String("service", e.Service),
			zap.String("from", e.From),
		)
	case CircuitClosed:
		s.logger.Info("circuit closed",
			zap.String("service", e.Service),
			zap.String("from", e.From),
		)
	case CircuitHalfOpened:
		s.logger.Warn("circuit half-opened",
			zap.String("service", e.Service),
			zap.String("from", e.From),
		)
	}
}

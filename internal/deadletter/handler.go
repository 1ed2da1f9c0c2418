package deadletter

import (
	"context"
	"errors"
	"time"

	"beacon/internal/constants"
	"beacon/internal/logger"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/metrics"
	"beacon/pkg/models"
)

// Handler is the terminal path for events that exhausted their retries.
// It never returns an error and never panics.
type Handler struct {
	sink    Sink
	channel string
	timeout time.Duration
	logger  logger.Logger
}

// NewHandler builds a handler writing to sink. A nil sink only logs.
func NewHandler(sink Sink, channel string, timeout time.Duration, log logger.Logger) *Handler {
	if timeout <= 0 {
		timeout = constants.DefaultDeadLetterWriteTimeout
	}
	return &Handler{
		sink:    sink,
		channel: channel,
		timeout: timeout,
		logger:  log,
	}
}

func (h *Handler) SinkName() string {
	if h.sink == nil {
		return constants.DeadLetterSinkLog
	}
	return h.sink.Name()
}

func (h *Handler) DeadLetter(ctx context.Context, msg *models.EventMessage, cause error, attempts int) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorwCtx(ctx, "Panic while dead-lettering event",
				"error", pkgerrors.RecoverPanic(r),
			)
		}
	}()

	rec := NewRecord(msg, cause, attempts, h.channel, constants.ServiceName)
	sinkName := h.SinkName()

	h.logger.ErrorwCtx(ctx, "Event moved to dead letter",
		"event_id", rec.EventID,
		"attempts", attempts,
		"error", rec.Error,
		"sink", sinkName,
		"event", msg,
	)
	metrics.IncDeadLetters(sinkName)

	if h.sink == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	if err := h.write(writeCtx, rec); err != nil {
		metrics.IncDeadLetterSinkFailure(sinkName)
		h.logger.ErrorwCtx(ctx, "Failed to write dead letter",
			"event_id", rec.EventID,
			"dead_letter_id", rec.ID,
			"sink", sinkName,
			"error", err,
		)
	}
}

func (h *Handler) write(ctx context.Context, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.RecoverPanic(r)
		}
	}()

	err = h.sink.Write(ctx, rec)
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.ErrTimeout.WithCause(err).WithDetail("sink", h.sink.Name())
	}
	return err
}

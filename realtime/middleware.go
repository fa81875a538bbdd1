package realtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Recover turns a handler panic into ErrHandlerPanic so one bad message never
// takes down the broker's delivery goroutine.
func Recover(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}

	return func(next Handler) Handler {
		return func(ctx Ctx) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(
						"panic in topic handler",
						zap.Any("panic", rec),
						zap.String("filter", ctx.Filter()),
						zap.String("topic", ctx.Topic()),
						zap.ByteString("payload", ctx.Payload()),
						zap.ByteString("stack", debug.Stack()),
					)
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
				}
			}()

			return next(ctx)
		}
	}
}

// Timeout bounds the handler's context. The handler still runs to completion;
// overrunning it only changes the reported error.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx Ctx) error {
			if d <= 0 {
				return next(ctx)
			}

			timed, cancel := context.WithTimeout(ctx.Context(), d)
			defer cancel()
			ctx.SetContext(timed)

			err := next(ctx)
			if errors.Is(timed.Err(), context.DeadlineExceeded) && (err == nil || errors.Is(err, context.DeadlineExceeded)) {
				return ErrHandlerTimeout
			}
			return err
		}
	}
}

// Trace wraps each delivery in a consumer span. Handler errors mark the span
// as failed.
func Trace(tracer trace.Tracer) Middleware {
	return func(next Handler) Handler {
		return func(ctx Ctx) error {
			spanCtx, span := tracer.Start(
				ctx.Context(),
				"realtime.relay",
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.String("messaging.system", "mqtt"),
					attribute.String("messaging.destination.name", ctx.Topic()),
					attribute.String("messaging.client.id", ctx.ClientID()),
					attribute.Int("messaging.message.body.size", len(ctx.Payload())),
				),
			)
			defer span.End()
			ctx.SetContext(spanCtx)

			err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

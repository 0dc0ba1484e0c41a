package message

import (
	"fmt"

	"go.uber.org/zap"
)

// Handler delivers one message to one receiver.
type Handler func(r Receiver, msg Message)

// Middleware is a function that wraps a handler to add additional functionality
type Middleware func(Handler) Handler

// Chain chains multiple middlewares together
func Chain(middlewares ...Middleware) Middleware {
	return func(h Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

func deliver(r Receiver, msg Message) {
	r.HandleMessage(msg)
}

// RecoveryMiddleware recovers from panics in receivers so one faulty
// receiver cannot stop delivery to the rest.
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(r Receiver, msg Message) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Receiver panicked while handling message",
						zap.String("receiver", r.ID().String()),
						zap.String("message_type", msg.Type.String()),
						zap.String("panic", fmt.Sprint(rec)))
				}
			}()
			next(r, msg)
		}
	}
}

// LoggingMiddleware logs every delivery at debug level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(r Receiver, msg Message) {
			logger.Debug("Delivering message",
				zap.String("receiver", r.ID().String()),
				zap.String("message_type", msg.Type.String()),
				zap.String("destination", msg.Destination.String()))
			next(r, msg)
		}
	}
}

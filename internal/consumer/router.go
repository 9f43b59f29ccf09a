package consumer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Router dispatches messages to the handler registered for their event type.
// Messages with no registered handler are acknowledged without action.
type Router struct {
	handlers map[string]Handler
	logger   logrus.FieldLogger
}

// NewRouter constructs an empty Router.
func NewRouter(logger logrus.FieldLogger) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Router{handlers: make(map[string]Handler), logger: logger}
}

// Register binds handler to eventType.
func (r *Router) Register(eventType string, handler Handler) *Router {
	r.handlers[eventType] = handler
	return r
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	handler, ok := r.handlers[msg.EventType]
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"event_type": msg.EventType,
			"topic":      msg.Topic,
		}).Debug("no handler registered, skipping")
		recordUnrouted(msg.EventType)
		return nil
	}
	return handler.Handle(ctx, msg)
}

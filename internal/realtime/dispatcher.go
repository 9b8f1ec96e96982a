package realtime

import "go.uber.org/zap"

// Dispatcher pushes envelopes for freshly persisted messages to their
// recipient, if reachable. Delivery is an optimization layered over durable
// history: no outcome here is ever surfaced to the sending request.
type Dispatcher struct {
	logger   *zap.SugaredLogger
	registry *Registry
}

func NewDispatcher(logger *zap.SugaredLogger, registry *Registry) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		registry: registry,
	}
}

// Dispatch delivers the envelope to the recipient's registered connection.
// Missing or dead connections are logged and otherwise ignored; the recipient
// catches up from persisted history on their next fetch.
func (d *Dispatcher) Dispatch(recipientID int64, env Envelope) {
	switch d.registry.SendTo(recipientID, env) {
	case Delivered:
		d.logger.Debugf("delivered message %d to user %d", env.MessageID, recipientID)
	case NotConnected:
		d.logger.Debugf("user %d not connected, message %d stays history-only", recipientID, env.MessageID)
	case SendFailed:
		d.logger.Warnf("evicted stalled connection of user %d while dispatching message %d", recipientID, env.MessageID)
	}
}

package transport

import (
	"time"

	"github.com/mash-protocol/scriptnet/pkg/log"
)

// capture emits protocol log events for one transport instance.
type capture struct {
	logger log.Logger
	connID string
	kind   string
	host   string
	remote string
}

func (c *capture) enabled() bool {
	return c.logger != nil
}

func (c *capture) event(layer log.Layer, category log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        layer,
		Category:     category,
		Kind:         c.kind,
		RemoteAddr:   c.remote,
		Host:         c.host,
	}
}

func (c *capture) state(oldState, newState ReadyState, reason string) {
	if !c.enabled() {
		return
	}
	ev := c.event(log.LayerTransport, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		OldState: oldState.String(),
		NewState: newState.String(),
		Reason:   reason,
	}
	c.logger.Log(ev)
}

func (c *capture) frame(layer log.Layer, dir log.Direction, data []byte, queued bool) {
	if !c.enabled() {
		return
	}
	ev := c.event(layer, log.CategoryData)
	ev.Direction = dir
	ev.Frame = log.NewFrameEvent(data)
	ev.Frame.Queued = queued
	c.logger.Log(ev)
}

func (c *capture) handshake(hs *log.HandshakeEvent) {
	if !c.enabled() {
		return
	}
	ev := c.event(log.LayerTLS, log.CategoryHandshake)
	ev.Handshake = hs
	c.logger.Log(ev)
}

func (c *capture) error(layer log.Layer, op string, err error) {
	if !c.enabled() {
		return
	}
	ev := c.event(layer, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Op:      op,
	}
	c.logger.Log(ev)
}

package stream

import "sync"

// Emitter receives events in emission order.
// Implementations must not reorder or drop events. Emit is called from a
// single goroutine per turn; implementations only need to be safe across
// turns, not within one.
type Emitter interface {
	// Emit delivers one event to the sink.
	Emit(evt Event)

	// Close signals that no further events follow.
	// Close is called exactly once, after the terminal event.
	Close()
}

// ChannelEmitter delivers events over a Go channel.
// The channel preserves emission order by construction.
type ChannelEmitter struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewChannelEmitter creates a ChannelEmitter with the given buffer size.
// A buffer of zero makes Emit block until the consumer is ready, which
// gives natural backpressure for slow clients.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream.
// The channel is closed after the terminal event.
func (c *ChannelEmitter) Events() <-chan Event {
	return c.ch
}

// Emit implements Emitter.
func (c *ChannelEmitter) Emit(evt Event) {
	c.ch <- evt
}

// Close implements Emitter.
func (c *ChannelEmitter) Close() {
	c.closeOnce.Do(func() { close(c.ch) })
}

// CallbackEmitter invokes a function for every event.
// Useful for transports that push events directly (e.g. SSE writers).
type CallbackEmitter struct {
	fn func(Event)
}

// NewCallbackEmitter creates an emitter that calls fn for each event.
func NewCallbackEmitter(fn func(Event)) *CallbackEmitter {
	return &CallbackEmitter{fn: fn}
}

// Emit implements Emitter.
func (c *CallbackEmitter) Emit(evt Event) {
	if c.fn != nil {
		c.fn(evt)
	}
}

// Close implements Emitter.
func (c *CallbackEmitter) Close() {}

// NullEmitter discards all events.
// Used when the caller does not care about streaming output.
type NullEmitter struct{}

// Emit implements Emitter.
func (NullEmitter) Emit(Event) {}

// Close implements Emitter.
func (NullEmitter) Close() {}

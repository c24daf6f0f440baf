package entity

import "context"

// Message is one raw line handed to a processor. Ack tells the source the
// line has been fully handled (persisted, or dropped as unparsable) so it
// may be forgotten; sources without delivery tracking pass a nil ack.
type Message struct {
	Value string
	ack   func()
}

func NewMessage(value string, ack func()) Message {
	return Message{Value: value, ack: ack}
}

func (m Message) Ack() {
	if m.ack != nil {
		m.ack()
	}
}

// MessageProducer publishes raw audit lines or encoded commands.
type MessageProducer interface {
	Send(ctx context.Context, message string) error
	Close()
}

// MessageConsumer exposes a stream of messages; the channel is closed when
// the source is exhausted or stopped.
type MessageConsumer interface {
	Messages() <-chan Message
	Close()
}

package memory

import (
	"context"

	"github.com/audit_replay_parse_service/internal/domain/entity"
)

type InMemoryProducer struct {
	Ch chan<- entity.Message
}

func NewInMemoryProducer(ch chan<- entity.Message) *InMemoryProducer {
	return &InMemoryProducer{Ch: ch}
}

// Send blocks until the message is buffered or ctx is done. Messages carry
// no acknowledgement.
func (p *InMemoryProducer) Send(ctx context.Context, message string) error {
	select {
	case p.Ch <- entity.NewMessage(message, nil):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *InMemoryProducer) Close() {}

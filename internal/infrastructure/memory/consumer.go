package memory

import "github.com/audit_replay_parse_service/internal/domain/entity"

type InMemoryConsumer struct {
	Ch <-chan entity.Message
}

func NewInMemoryConsumer(ch <-chan entity.Message) *InMemoryConsumer {
	return &InMemoryConsumer{Ch: ch}
}

func (c *InMemoryConsumer) Messages() <-chan entity.Message {
	return c.Ch
}

// Close is a no-op; the owner of Ch closes it.
func (c *InMemoryConsumer) Close() {}

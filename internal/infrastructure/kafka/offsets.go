package kafka

import (
	"sort"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type partitionKey struct {
	topic     string
	partition int32
}

type partitionOffsets struct {
	delivered   []kafka.Offset
	acked       map[kafka.Offset]bool
	committable kafka.Offset
	committed   kafka.Offset
}

// offsetTracker decides which offsets are safe to commit. An offset becomes
// committable only once it and every offset delivered before it on the same
// partition have been acknowledged, so a commit never skips an unhandled line.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey]*partitionOffsets)}
}

func (t *offsetTracker) state(tp kafka.TopicPartition) *partitionOffsets {
	key := partitionKey{partition: tp.Partition}
	if tp.Topic != nil {
		key.topic = *tp.Topic
	}
	s, ok := t.partitions[key]
	if !ok {
		s = &partitionOffsets{
			acked:       make(map[kafka.Offset]bool),
			committable: kafka.OffsetInvalid,
			committed:   kafka.OffsetInvalid,
		}
		t.partitions[key] = s
	}
	return s
}

// Track records a delivered offset. Offsets of one partition arrive in order.
func (t *offsetTracker) Track(tp kafka.TopicPartition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(tp)
	s.delivered = append(s.delivered, tp.Offset)
}

func (t *offsetTracker) Ack(tp kafka.TopicPartition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(tp)
	s.acked[tp.Offset] = true
	for len(s.delivered) > 0 && s.acked[s.delivered[0]] {
		delete(s.acked, s.delivered[0])
		s.committable = s.delivered[0] + 1
		s.delivered = s.delivered[1:]
	}
}

// Committable lists, per partition, the next offset to commit when it moved
// since the last successful commit.
func (t *offsetTracker) Committable() []kafka.TopicPartition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var offsets []kafka.TopicPartition
	for key, s := range t.partitions {
		if s.committable == kafka.OffsetInvalid || s.committable == s.committed {
			continue
		}
		topic := key.topic
		offsets = append(offsets, kafka.TopicPartition{
			Topic:     &topic,
			Partition: key.partition,
			Offset:    s.committable,
		})
	}

	sort.Slice(offsets, func(i, j int) bool {
		if *offsets[i].Topic != *offsets[j].Topic {
			return *offsets[i].Topic < *offsets[j].Topic
		}
		return offsets[i].Partition < offsets[j].Partition
	})
	return offsets
}

func (t *offsetTracker) Committed(offsets []kafka.TopicPartition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tp := range offsets {
		s := t.state(tp)
		if tp.Offset > s.committed {
			s.committed = tp.Offset
		}
	}
}

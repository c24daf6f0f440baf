package kafka

import (
	"fmt"
	"sync"
	"time"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// messageSource is the part of *kafka.Consumer the KafkaConsumer drives.
type messageSource interface {
	Poll(timeoutMs int) kafka.Event
	Assignment() ([]kafka.TopicPartition, error)
	Pause(partitions []kafka.TopicPartition) error
	Resume(partitions []kafka.TopicPartition) error
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Close() error
}

// KafkaConsumer streams raw audit lines from a topic. An offset is committed
// only after the message and every earlier one on its partition were acked,
// and partitions are paused while the local buffer is above its high water
// mark.
//
// Shutdown order: Stop ends polling and closes Messages; the caller drains
// and acks what is left; Close then commits and leaves the group.
type KafkaConsumer struct {
	source              messageSource
	logger              logrus.FieldLogger
	tracker             *offsetTracker
	messages            chan entity.Message
	stop                chan struct{}
	stopOnce            sync.Once
	polling             sync.WaitGroup
	done                chan struct{}
	closeOnce           sync.Once
	workers             sync.WaitGroup
	pausedPartitions    map[string]bool
	pauseMutex          sync.Mutex
	bufferHighWaterMark int
	bufferLowWaterMark  int
	commitInterval      time.Duration
}

func NewKafkaConsumer(bootstrapServers, topic, groupID string, logger logrus.FieldLogger) (*KafkaConsumer, error) {
	config := &kafka.ConfigMap{
		"bootstrap.servers":      bootstrapServers,
		"group.id":               groupID,
		"auto.offset.reset":      "earliest",
		"enable.auto.commit":     "false",
		"max.poll.interval.ms":   300000,
		"session.timeout.ms":     10000,
		"heartbeat.interval.ms":  3000,
		"go.events.channel.size": 10000,
	}

	consumer, err := kafka.NewConsumer(config)
	if err != nil {
		return nil, fmt.Errorf("error creating consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("error subscribing to topic %s: %w", topic, err)
	}

	return newKafkaConsumer(consumer, logger.WithField("topic", topic), 5*time.Second), nil
}

func newKafkaConsumer(source messageSource, logger logrus.FieldLogger, commitInterval time.Duration) *KafkaConsumer {
	k := &KafkaConsumer{
		source:              source,
		logger:              logger,
		tracker:             newOffsetTracker(),
		messages:            make(chan entity.Message, 10000),
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
		pausedPartitions:    make(map[string]bool),
		bufferHighWaterMark: 8000,
		bufferLowWaterMark:  2000,
		commitInterval:      commitInterval,
	}

	k.polling.Add(1)
	go k.consume()
	k.workers.Add(2)
	go k.manageBackpressure()
	go k.commitWorker()
	return k
}

func (c *KafkaConsumer) consume() {
	defer c.polling.Done()
	defer close(c.messages)

	for {
		select {
		case <-c.stop:
			return
		default:
			ev := c.source.Poll(100)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				tp := e.TopicPartition
				// tracked before hand-off: a message dropped here stays
				// unacked and holds the partition's commit point back
				c.tracker.Track(tp)
				msg := entity.NewMessage(string(e.Value), func() { c.tracker.Ack(tp) })
				select {
				case c.messages <- msg:
				case <-c.stop:
					return
				}
			case kafka.Error:
				c.logger.WithError(e).Warn("consumer error")
			}
		}
	}
}

func (c *KafkaConsumer) manageBackpressure() {
	defer c.workers.Done()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bufferLevel := len(c.messages)
			if bufferLevel >= c.bufferHighWaterMark {
				c.setPaused(true)
			} else if bufferLevel <= c.bufferLowWaterMark {
				c.setPaused(false)
			}

		case <-c.done:
			return
		}
	}
}

func (c *KafkaConsumer) setPaused(paused bool) {
	c.pauseMutex.Lock()
	defer c.pauseMutex.Unlock()

	partitions, err := c.source.Assignment()
	if err != nil {
		c.logger.WithError(err).Warn("error getting partitions")
		return
	}

	var changed []kafka.TopicPartition
	for _, tp := range partitions {
		key := fmt.Sprintf("%s/%d", *tp.Topic, tp.Partition)
		if c.pausedPartitions[key] != paused {
			changed = append(changed, tp)
			c.pausedPartitions[key] = paused
		}
	}
	if len(changed) == 0 {
		return
	}

	if paused {
		err = c.source.Pause(changed)
	} else {
		err = c.source.Resume(changed)
	}
	if err != nil {
		c.logger.WithError(err).WithField("paused", paused).Warn("could not change partition state")
	}
}

func (c *KafkaConsumer) commitWorker() {
	defer c.workers.Done()
	ticker := time.NewTicker(c.commitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.commit()

		case <-c.done:
			c.commit()
			return
		}
	}
}

func (c *KafkaConsumer) commit() {
	offsets := c.tracker.Committable()
	if len(offsets) == 0 {
		return
	}

	if _, err := c.source.CommitOffsets(offsets); err != nil {
		c.logger.WithError(err).Warn("commit error")
		return
	}
	c.tracker.Committed(offsets)
}

func (c *KafkaConsumer) Messages() <-chan entity.Message {
	return c.messages
}

// Stop ends polling. Messages is closed once the poll loop has returned;
// messages already buffered stay readable.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.polling.Wait()
}

// Close stops polling, commits every acked offset and leaves the group.
// Messages not acked by then are redelivered after a restart.
func (c *KafkaConsumer) Close() {
	c.Stop()
	c.closeOnce.Do(func() {
		close(c.done)
		c.workers.Wait()
		if err := c.source.Close(); err != nil {
			c.logger.WithError(err).Warn("error closing consumer")
		}
	})
}
